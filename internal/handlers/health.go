package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports the state of each dependency.
type HealthResponse struct {
	Status    string            `json:"status"`
	Cache     string            `json:"cache"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// Health reports dependency health
// @Summary Health check
// @Description The remote cache tier is reported but never makes the service unhealthy
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Cache:     h.cache.Mode(),
		Checks:    map[string]string{},
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK

	if err := h.storage.Health(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Health(ctx); err != nil {
			resp.Checks["redis"] = err.Error()
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["redis"] = "ok"
		}
	}

	writeJSON(w, status, resp)
}
