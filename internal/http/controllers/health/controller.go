// Package health expone los endpoints de liveness/readiness.
package health

import (
	"context"
	"net/http"
	"time"

	httpx "github.com/dropDatabas3/mcpd/internal/http"
)

// ReadyCheck es una sonda con nombre. Error => not ready.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Controller responde /healthz y /readyz.
type Controller struct {
	checks []ReadyCheck
}

func NewController(checks ...ReadyCheck) *Controller {
	return &Controller{checks: checks}
}

// Live maneja GET /healthz: el proceso responde.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready maneja GET /readyz: corre las sondas con un timeout corto.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failures := map[string]string{}
	for _, probe := range c.checks {
		if err := probe.Check(ctx); err != nil {
			failures[probe.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unavailable",
			"failures": failures,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
