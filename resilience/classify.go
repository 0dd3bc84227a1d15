package resilience

import (
	"context"
	"errors"
	"net"
)

// Kind classifies a failure so gates can decide whether it should count
// against them. A validation error caused by malformed caller input, for
// example, says nothing about the health of the dependency and should not
// trip a breaker watching for dependency failure.
type Kind int

const (
	// KindUnknown is any failure the classifier cannot place.
	KindUnknown Kind = iota
	// KindTimeout is a deadline or per-call timeout failure.
	KindTimeout
	// KindConnection is a transport-level failure (refused, reset, DNS).
	KindConnection
	// KindRemote is an error reported by the remote dependency itself.
	KindRemote
	// KindValidation is a caller-input error; the dependency is fine.
	KindValidation
	// KindRateLimit is a throttling signal from the dependency.
	KindRateLimit
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindRemote:
		return "remote"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate-limit"
	default:
		return "unknown"
	}
}

// KindError tags an error with an explicit failure kind. Classify honors
// the tag over any structural inspection.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string {
	return e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// WithKind wraps err with an explicit failure kind. A nil err returns nil.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// Classify determines the failure kind of an error. Explicit KindError
// tags win; otherwise deadline and net errors are recognized structurally
// and everything else is KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}

	if errors.Is(err, ErrRequestTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	return KindUnknown
}

// Classifier decides whether a failure kind counts toward a circuit
// breaker's failure threshold.
type Classifier func(Kind) bool

// DefaultClassifier counts every failure kind except validation errors,
// which indicate bad caller input rather than dependency trouble.
func DefaultClassifier(k Kind) bool {
	return k != KindValidation
}
