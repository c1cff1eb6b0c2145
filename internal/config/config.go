// Package config handles CLI, environment and TOML configuration loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/adyen-proxy/config.toml",
	"configs/config.toml",
}

// Reference schemes accepted by adyen.reference_scheme.
const (
	ReferenceTimestamp = "timestamp"
	ReferenceUUID      = "uuid"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config          string   `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host            string   `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port            int      `kong:"short='p',help='Listen port (overrides config).',env='PORT,HTTPS_PORT'"`
	TLS             bool     `kong:"help='Serve HTTPS using the configured certificate pair.',env='TLS_ENABLED'"`
	AllowedOrigins  []string `kong:"help='Comma-separated CORS allow-list (overrides config).',env='ALLOWED_ORIGINS'"`
	BaseURL         string   `kong:"help='Adyen Checkout API base URL (overrides config).',env='ADYEN_BASE_URL'"`
	APIKey          string   `kong:"help='Adyen API key (overrides config).',env='ADYEN_API_KEY'"`
	MerchantAccount string   `kong:"help='Adyen merchant account (overrides config).',env='ADYEN_MERCHANT_ACCOUNT'"`
	ReturnURL       string   `kong:"help='Fallback returnUrl for sessions (overrides config).',env='DEFAULT_RETURN_URL'"`
	Environment     string   `kong:"help='Deployment environment name.',env='NODE_ENV,APP_ENV'"`
	LogLevel        string   `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Adyen    AdyenConfig    `toml:"adyen"`
	CORS     CORSConfig     `toml:"cors"`
	Upstream UpstreamConfig `toml:"upstream"`
	Health   HealthConfig   `toml:"health"`
	App      AppConfig      `toml:"app"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string    `toml:"host"`
	Port         int       `toml:"port"` // 0 means "use default" (3001)
	BodyMaxBytes int64     `toml:"body_max_bytes"`
	TLS          TLSConfig `toml:"tls"`
}

// TLSConfig selects the HTTPS variant. When either file is missing at startup
// the server falls back to plain HTTP.
type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

// AdyenConfig holds the server-side secrets injected into every session request.
// None of these are validated; missing values are forwarded as-is.
type AdyenConfig struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	MerchantAccount  string `toml:"merchant_account"`
	DefaultReturnURL string `toml:"default_return_url"`
	ReferenceScheme  string `toml:"reference_scheme"`
}

// CORSConfig holds the browser origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	// HostedDomains marks allow-list entries that also match by prefix,
	// e.g. "https://acme.github.io" admits "https://acme.github.io/shop".
	HostedDomains []string `toml:"hosted_domains"`
}

// DefaultAllowedOrigin is enforced when no allow-list is configured.
const DefaultAllowedOrigin = "http://localhost:3000"

// Origins returns the effective allow-list.
func (c CORSConfig) Origins() []string {
	if len(c.AllowedOrigins) == 0 {
		return []string{DefaultAllowedOrigin}
	}
	return c.AllowedOrigins
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"` // 0 leaves the client without a timeout
	IdleConnections int `toml:"idle_connections"`
}

// HealthConfig controls what the health probe reveals.
type HealthConfig struct {
	Verbose bool `toml:"verbose"`
}

// AppConfig holds deployment metadata.
type AppConfig struct {
	Environment string `toml:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoadDotEnv populates the process environment from a .env file without
// overriding variables that are already set. It returns the path that was
// loaded, or an empty string when the file does not exist.
func LoadDotEnv(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("config: load %s: %w", path, err)
	}
	return path, nil
}

// Load reads the optional TOML config file and applies CLI and environment overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/adyen-proxy/config.toml then configs/config.toml and falls back to
// defaults if neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.TLS {
		c.Server.TLS.Enabled = true
	}
	if len(cli.AllowedOrigins) > 0 {
		c.CORS.AllowedOrigins = cli.AllowedOrigins
	}
	if cli.BaseURL != "" {
		c.Adyen.BaseURL = cli.BaseURL
	}
	if cli.APIKey != "" {
		c.Adyen.APIKey = cli.APIKey
	}
	if cli.MerchantAccount != "" {
		c.Adyen.MerchantAccount = cli.MerchantAccount
	}
	if cli.ReturnURL != "" {
		c.Adyen.DefaultReturnURL = cli.ReturnURL
	}
	if cli.Environment != "" {
		c.App.Environment = cli.Environment
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}

	switch strings.ToLower(c.Adyen.ReferenceScheme) {
	case ReferenceTimestamp, ReferenceUUID, "":
	default:
		return fmt.Errorf("adyen.reference_scheme must be one of: timestamp, uuid; got %q", c.Adyen.ReferenceScheme)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/api/adyen", "/health"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with defaults.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1 << 20
	}
	if c.Server.TLS.CertFile == "" {
		c.Server.TLS.CertFile = "localhost-cert.pem"
	}
	if c.Server.TLS.KeyFile == "" {
		c.Server.TLS.KeyFile = "localhost-key.pem"
	}

	// AllowedOrigins stays empty when unset; Origins applies the default.
	c.CORS.AllowedOrigins = normalizeList(c.CORS.AllowedOrigins)
	c.CORS.HostedDomains = normalizeList(c.CORS.HostedDomains)
	if len(c.CORS.HostedDomains) == 0 {
		c.CORS.HostedDomains = []string{"github.io"}
	}

	if c.Adyen.DefaultReturnURL == "" {
		c.Adyen.DefaultReturnURL = "https://your-company.example.com/checkout"
	}
	c.Adyen.ReferenceScheme = strings.ToLower(c.Adyen.ReferenceScheme)
	if c.Adyen.ReferenceScheme == "" {
		c.Adyen.ReferenceScheme = ReferenceTimestamp
	}

	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// normalizeList trims entries and drops empty ones, so "a, b," yields [a b].
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
// The file may hold the Adyen API key.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
