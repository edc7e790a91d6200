package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/api/rpc"
)

// Config is everything the HTTP layer needs.
type Config struct {
	Dispatcher     *rpc.Dispatcher
	AllowedOrigins []string
	// Database backs GET /health when set.
	Database Pinger
	// Metrics mounts echo's request metrics and GET /metrics.
	Metrics bool
}

// New builds protocaas' HTTP server.
func New(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(preflightOK)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowMethods: []string{
			http.MethodGet, http.MethodOptions, http.MethodPatch,
			http.MethodDelete, http.MethodPost, http.MethodPut,
		},
		AllowHeaders: []string{
			"X-CSRF-Token", "X-Requested-With", "Accept", "Accept-Version",
			"Content-Length", "Content-MD5", "Content-Type", "Date", "X-Api-Version",
		},
	}))

	// health
	e.GET("/health", health(cfg.Database))

	// metrics
	if cfg.Metrics {
		prometheus.NewPrometheus("protocaas", nil).Use(e)
	}

	// rpc
	h := &handler{dispatcher: cfg.Dispatcher}
	e.POST("/api", h.post)

	return e
}

var server *echo.Echo

// Start launches protocaas' API on port.
func Start(cfg Config, port int) error {
	server = New(cfg)
	err := server.Start(fmt.Sprintf(":%v", port))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server launched by Start.
func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// preflightOK answers CORS preflight with 200 where echo's CORS
// middleware would use 204.
func preflightOK(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodOptions {
			res := c.Response()
			res.Before(func() {
				if res.Status == http.StatusNoContent {
					res.Status = http.StatusOK
				}
			})
		}
		return next(c)
	}
}

type handler struct {
	dispatcher *rpc.Dispatcher
}

func (h *handler) post(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	resp, err := h.dispatcher.Dispatch(c.Request().Context(), body)
	switch {
	case errors.Is(err, rpc.ErrInvalidRequest):
		return c.String(http.StatusBadRequest, "Invalid request: "+string(body))
	case err != nil:
		return c.String(http.StatusInternalServerError, "Error: "+err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}
