package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"adyen-session-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// isoMillis matches JavaScript's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z"

// HealthHandler serves the health probe.
type HealthHandler struct {
	cfg     *config.Config
	version Version
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v, now: time.Now}
}

type healthResponse struct {
	Status         string   `json:"status"`
	Timestamp      string   `json:"timestamp"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	Environment    string   `json:"environment,omitempty"`
	Version        string   `json:"version,omitempty"`
}

// Health returns 200 with the current time. With health.verbose it also
// echoes the configured CORS allow-list ("none" when unset, even though the
// default origin is still enforced) and environment.
func (h *HealthHandler) Health(c echo.Context) error {
	resp := healthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(isoMillis),
	}
	if h.cfg.Health.Verbose {
		resp.AllowedOrigins = h.cfg.CORS.AllowedOrigins
		if len(resp.AllowedOrigins) == 0 {
			resp.AllowedOrigins = []string{"none"}
		}
		resp.Environment = h.cfg.App.Environment
		resp.Version = string(h.version)
	}
	return c.JSON(http.StatusOK, resp)
}
