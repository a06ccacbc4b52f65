// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness flag. The API clears it on shutdown so load
// balancers drain the instance before the server stops.
func SetReady(v bool) { ready.Store(v) }

// Check probes one dependency. Optional checks are reported but never fail
// readiness; the deal builder keeps working without the ledger service.
type Check struct {
	Name     string
	Timeout  time.Duration
	Optional bool
	Probe    func(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and answers 503 if a required one fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "shutting down"})
		return
	}

	results := make([]error, len(h.Checks))
	var g errgroup.Group
	for i, c := range h.Checks {
		if c.Probe == nil {
			continue
		}
		g.Go(func() error {
			results[i] = probe(r.Context(), c)
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[string]string, len(h.Checks))
	healthy := true
	for i, c := range h.Checks {
		if c.Probe == nil {
			continue
		}
		switch err := results[i]; {
		case err == nil:
			status[c.Name] = "ok"
		case c.Optional:
			status[c.Name] = "degraded: " + err.Error()
		default:
			status[c.Name] = err.Error()
			healthy = false
		}
	}
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func probe(ctx context.Context, c Check) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Probe(ctx)
}
