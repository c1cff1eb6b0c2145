package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"adyen-session-proxy/internal/config"
	"adyen-session-proxy/internal/metrics"
)

// OriginMatcher decides whether a browser origin may call the proxy.
type OriginMatcher struct {
	allowed       []string
	hostedDomains []string
}

// NewOriginMatcher creates an OriginMatcher from the CORS allow-list.
func NewOriginMatcher(cfg *config.Config) *OriginMatcher {
	return &OriginMatcher{
		allowed:       cfg.CORS.Origins(),
		hostedDomains: cfg.CORS.HostedDomains,
	}
}

// Allowed reports whether origin matches an allow-list entry exactly, or by
// prefix when the entry belongs to a hosted domain. An empty origin (curl,
// server-to-server, mobile apps) is always allowed.
func (m *OriginMatcher) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, entry := range m.allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if origin == entry {
			return true
		}
		if m.hosted(entry) && strings.HasPrefix(origin, entry) {
			return true
		}
	}
	return false
}

func (m *OriginMatcher) hosted(entry string) bool {
	for _, d := range m.hostedDomains {
		if strings.Contains(entry, d) {
			return true
		}
	}
	return false
}

// CORS returns an Echo middleware enforcing the origin allow-list. A blocked
// origin never reaches the handler: it gets a bodiless 403 without any
// Access-Control-* headers, which the browser reports as a CORS failure.
// The metrics parameter is optional.
func CORS(matcher *OriginMatcher, logger *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	headers := echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return matcher.Allowed(origin), nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           600,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withHeaders := headers(next)
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if !matcher.Allowed(origin) {
				logger.Warn("CORS blocked origin",
					"origin", origin,
					"allowed_origins", strings.Join(matcher.allowed, ", "),
				)
				if m != nil {
					m.CORSRejected.Inc()
				}
				return c.NoContent(http.StatusForbidden)
			}
			return withHeaders(c)
		}
	}
}
