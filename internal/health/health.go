// Package health serves the liveness and readiness endpoints of the admin
// HTTP server.
//
// /healthz always answers 200 while the process can serve HTTP. /readyz
// answers 200 only when every registered [Checker] passes; RealTalk registers
// a calibration [Gate] plus one checker per optional sink (journal, bus).
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const checkTimeout = 3 * time.Second

// Checker probes one dependency. Check returns nil when it is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

// New creates a [Handler] with an initial set of checkers.
func New(checkers ...Checker) *Handler {
	h := &Handler{}
	for _, c := range checkers {
		h.Add(c)
	}
	return h
}

// Add registers another checker. Checkers run in registration order.
func (h *Handler) Add(c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker with a per-check timeout.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checkers := append([]Checker(nil), h.checkers...)
	h.mu.RUnlock()

	rep := report{Status: "ok", Checks: make(map[string]string, len(checkers))}
	code := http.StatusOK
	for _, c := range checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			rep.Checks[c.Name] = "fail: " + err.Error()
			rep.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	writeJSON(w, code, rep)
}

// Register mounts both endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrNotReady is reported by a closed [Gate].
var ErrNotReady = errors.New("not ready")

// Gate is a readiness flag that starts closed. The capture loop opens it once
// calibration has produced a noise profile.
type Gate struct {
	open atomic.Bool
}

// Open marks the gate ready.
func (g *Gate) Open() { g.open.Store(true) }

// Close marks the gate not ready, e.g. after the audio stream ended.
func (g *Gate) Close() { g.open.Store(false) }

// Checker returns a [Checker] named name that passes while the gate is open.
func (g *Gate) Checker(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if !g.open.Load() {
			return ErrNotReady
		}
		return nil
	}}
}
