package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

// HealthFunc reports whether the node is healthy, with a JSON-encodable
// body describing why.
type HealthFunc func() (healthy bool, details any)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	// Health serves /healthz when non-nil.
	Health HealthFunc
	Logger logger.Logger
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit int
}

// NewRouter creates the admin router with its middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	log := logger.OrDefault(cfg.Logger)

	mux := http.NewServeMux()
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", healthHandler(cfg.Health))
	}

	// Order: Recover -> RequestID -> RateLimit -> AccessLog -> mux
	middlewares := []Middleware{Recover(log), RequestID()}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}
	middlewares = append(middlewares, AccessLog(log))
	return Chain(mux, middlewares...)
}

func healthHandler(fn HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, details := fn()
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"status":  statusText(healthy),
			"details": details,
		})
	}
}

func statusText(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "unavailable"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
