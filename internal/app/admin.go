package app

import (
	"net/http"
	"time"

	"github.com/MrWong99/realtalk/internal/health"
	"github.com/MrWong99/realtalk/internal/observe"
)

// NewAdminServer returns the admin HTTP server exposing /healthz, /readyz
// and, when metricsHandler is non-nil, /metrics. The caller starts and stops
// it.
func NewAdminServer(addr string, checkers []health.Checker, metricsHandler http.Handler, m *observe.Metrics) *http.Server {
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
