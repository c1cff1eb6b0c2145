package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"adyen-session-proxy/internal/client"
	"adyen-session-proxy/internal/config"
	"adyen-session-proxy/internal/handler"
	"adyen-session-proxy/internal/metrics"
	"adyen-session-proxy/internal/middleware"
	"adyen-session-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cliArgs struct {
	config.CLI `kong:"embed"`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
}

func main() {
	// .env must be loaded before Kong resolves env-backed flags.
	envFile, envErr := config.LoadDotEnv(".env")

	var cli cliArgs
	kong.Parse(&cli,
		kong.Name("adyen-proxy"),
		kong.Description("Credential-shielding proxy for Adyen Checkout session creation."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli.CLI },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			middleware.NewOriginMatcher,
			newEcho,
			client.NewAdyenClient,
			service.NewSessionService,
			handler.NewSessionHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(
			func(logger *slog.Logger) { logEnvFile(logger, envFile, envErr) },
			handler.RegisterRoutes,
			warnConfigPermissions,
			startServer,
		),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, origins *middleware.OriginMatcher) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	// Inbound timeouts to mitigate slow-client attacks. WriteTimeout stays
	// unset: the upstream call has no timeout of its own.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
	}
	e.Use(middleware.CORS(origins, logger, m))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	return e
}

func logEnvFile(logger *slog.Logger, path string, err error) {
	if err != nil {
		logger.Warn("could not load environment file", "err", err)
		return
	}
	if path != "" {
		logger.Info("loaded environment file", "path", path)
	}
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

// tlsConfig returns the server TLS configuration for the HTTPS variant, or nil
// when plain HTTP should be served. A missing or unreadable certificate pair
// is not fatal: the server falls back to HTTP with a warning.
func tlsConfig(cfg *config.Config, logger *slog.Logger) *tls.Config {
	t := cfg.Server.TLS
	if !t.Enabled {
		return nil
	}

	for _, p := range []string{t.CertFile, t.KeyFile} {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			logger.Warn("HTTPS certificates not found; starting HTTP server instead",
				"cert_file", t.CertFile,
				"key_file", t.KeyFile,
				"hint", fmt.Sprintf(`openssl req -x509 -newkey rsa:2048 -keyout %s -out %s -days 365 -nodes -subj "/CN=localhost"`, t.KeyFile, t.CertFile),
			)
			return nil
		}
	}

	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		logger.Error("error reading certificates; starting HTTP server instead", "err", err)
		return nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}

			scheme := "http"
			if tc := tlsConfig(cfg, logger); tc != nil {
				e.Server.TLSConfig = tc
				ln = tls.NewListener(ln, tc)
				scheme = "https"
			}

			base := fmt.Sprintf("%s://localhost:%d", scheme, cfg.Server.Port)
			logger.Info("starting server",
				"addr", addr,
				"scheme", scheme,
				"health", base+"/health",
				"sessions", base+"/api/adyen/sessions",
				"allowed_origins", strings.Join(cfg.CORS.Origins(), ","),
				"merchant_account", cfg.Adyen.MerchantAccount,
				"environment", cfg.App.Environment,
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
