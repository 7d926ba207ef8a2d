// Package health serves the liveness and readiness probes of the speaking
// service.
//
// GET /healthz answers 200 as long as the process serves HTTP. GET /readyz
// runs every registered [Checker] concurrently and answers 503 when a
// required one fails. A failing optional checker (speech synthesis, LLM
// feedback) only marks the service "degraded": attempts are still scored
// without it.
//
// Both endpoints return {"status": ..., "checks": {name: outcome}} where
// status is "ok", "degraded" or "fail".
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 5 * time.Second

// Status values of a probe response.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker probes one dependency.
type Checker struct {
	// Name keys the check in the response ("stt", "progress").
	Name string

	// Check returns nil when the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error

	// Optional marks a dependency the service can run without.
	Optional bool
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed by [New].
type Handler struct {
	checkers []Checker
}

// New returns a [Handler] for checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts /healthz and /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: StatusOK})
}

// Readyz runs the checkers and reports the worst outcome.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := h.run(r.Context())

	rep := report{Status: StatusOK, Checks: make(map[string]string, len(h.checkers))}
	for i, c := range h.checkers {
		err := errs[i]
		switch {
		case err == nil:
			rep.Checks[c.Name] = StatusOK
		case c.Optional:
			rep.Checks[c.Name] = StatusDegraded + ": " + err.Error()
			if rep.Status == StatusOK {
				rep.Status = StatusDegraded
			}
		default:
			rep.Checks[c.Name] = StatusFail + ": " + err.Error()
			rep.Status = StatusFail
		}
	}

	code := http.StatusOK
	if rep.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// run executes every checker with its own deadline and returns the errors
// in checker order.
func (h *Handler) run(ctx context.Context) []error {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
