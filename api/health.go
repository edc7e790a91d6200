package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/protocaas/protocaas/pkg/log"
)

var startedAt = time.Now()

// healthTimeout bounds the database check so a hung connection pool
// cannot stall load balancer probes.
const healthTimeout = 2 * time.Second

// Pinger checks that the metadata store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the health of protocaas or one of its dependencies.
type Status string

const (
	Healthy   Status = "healthy"
	Unhealthy Status = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        Status  `json:"status"`
	Database      Status  `json:"database"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// health answers 200 while the metadata store is reachable and 503
// otherwise. Without a Pinger only the process itself is reported.
func health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := HealthResponse{
			Status:        Healthy,
			Database:      Healthy,
			UptimeSeconds: time.Since(startedAt).Seconds(),
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				log.Warn("health check failed", "error", err)
				resp.Status, resp.Database = Unhealthy, Unhealthy
				return c.JSON(http.StatusServiceUnavailable, resp)
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}
