package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adyen-session-proxy/internal/config"
	"adyen-session-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, sessions *SessionHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/health", health.Health)
	e.POST("/api/adyen/sessions", sessions.Create)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
