package api

import (
	"context"
	"net/http"
	"time"
)

// Check is one dependency probed by the readiness endpoint. A failing
// critical check makes the service unready; any other failure only degrades
// it.
type Check struct {
	Name     string
	Critical bool
	Ping     func(ctx context.Context) error
}

type HealthHandler struct {
	service string
	env     string
	checks  []Check
}

func NewHealthHandler(service, env string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		service: service,
		env:     env,
		checks:  checks,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "ok", Service: h.service})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	status := "ok"

	for _, c := range h.checks {
		checkCtx, checkCancel := context.WithTimeout(ctx, time.Second)
		err := c.Ping(checkCtx)
		checkCancel()

		if err == nil {
			deps[c.Name] = "ok"
			continue
		}
		deps[c.Name] = "down"
		switch {
		case c.Critical:
			status = "error"
		case status == "ok":
			status = "degraded"
		}
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Service:      h.service,
		Env:          h.env,
		Dependencies: deps,
	})
}
