package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/database"
	"github.com/soudorock6666/Pet-Shop/pkg/utils"
)

// HealthHandler handles health check endpoints for monitoring and
// orchestration. Provides a simple liveness check and a readiness check
// that verifies Redis connectivity. The external managed services are
// deliberately not probed here: their availability is surfaced per-request,
// and a readiness probe should not flap with someone else's uptime.
type HealthHandler struct {
	redis *database.RedisDB // Redis connection for health checks
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(redis *database.RedisDB) *HealthHandler {
	return &HealthHandler{redis: redis}
}

// HealthResponse represents the health check response structure.
//
// JSON example:
//
//	{
//	  "status": "ok",
//	  "timestamp": "2026-01-20T14:30:00Z",
//	  "services": {
//	    "redis": "healthy"
//	  }
//	}
type HealthResponse struct {
	Status    string            `json:"status"`             // Overall status: "ok" or "degraded"
	Timestamp time.Time         `json:"timestamp"`          // Current server time
	Services  map[string]string `json:"services,omitempty"` // Individual service health (readiness only)
}

// Health returns a simple health check indicating the service is running.
// This is a liveness probe; it only checks that the application is alive,
// not that it is ready to serve traffic. Use Ready for readiness checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}

	utils.RespondWithJSON(w, r, http.StatusOK, response)
}

// Ready checks if the service is ready to accept traffic by verifying
// Redis connectivity. Returns 200 OK when healthy, 503 Service Unavailable
// otherwise. Checks have a 5-second timeout to prevent hanging probes.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	allHealthy := true

	// Check Redis
	if err := h.redis.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Redis health check failed")
		services["redis"] = "unhealthy"
		allHealthy = false
	} else {
		services["redis"] = "healthy"
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  services,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, r, statusCode, response)
}
