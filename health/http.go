package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes: the
// process is up and serving.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes, serving
// the monitor's last-known snapshot. It never runs checks and never
// blocks on one.
func ReadinessHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := m.Status()

		w.Header().Set("Content-Type", "text/plain")
		switch snap.Overall {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNHEALTHY"))
		}
	}
}

// StatusResponse is the JSON body of the detailed health endpoint.
type StatusResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Healthy   int                      `json:"healthy"`
	Degraded  int                      `json:"degraded"`
	Unhealthy int                      `json:"unhealthy"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON shape of one check's last-known state.
type CheckResponse struct {
	Status              string `json:"status"`
	Message             string `json:"message,omitempty"`
	Critical            bool   `json:"critical,omitempty"`
	LastRun             string `json:"last_run,omitempty"`
	Duration            string `json:"duration,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
	Error               string `json:"error,omitempty"`
}

// DetailedHandler returns an HTTP handler serving the full monitor
// snapshot as JSON.
func DetailedHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := m.Status()

		response := StatusResponse{
			Status:    snap.Overall.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Healthy:   snap.Healthy,
			Degraded:  snap.Degraded,
			Unhealthy: snap.Unhealthy,
			Checks:    make(map[string]CheckResponse, len(snap.Checks)),
		}

		for name, cs := range snap.Checks {
			check := CheckResponse{
				Status:              cs.Status.String(),
				Message:             cs.Message,
				Critical:            cs.Critical,
				Duration:            cs.Duration.String(),
				ConsecutiveFailures: cs.ConsecutiveFailures,
			}
			if !cs.LastRun.IsZero() {
				check.LastRun = cs.LastRun.UTC().Format(time.RFC3339)
			}
			if cs.Error != nil {
				check.Error = cs.Error.Error()
			}
			response.Checks[name] = check
		}

		w.Header().Set("Content-Type", "application/json")
		if snap.Overall == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers the standard health endpoints on mux.
func RegisterHandlers(mux *http.ServeMux, m *Monitor) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(m))
	mux.HandleFunc("/health", DetailedHandler(m))
}
