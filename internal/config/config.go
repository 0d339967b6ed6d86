// ABOUTME: Configuration loading and parsing for rendezvous-mcp
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Defaults
const (
	DefaultHTTPAddr       = "0.0.0.0:3002"
	DefaultSessionTTL     = 30 * time.Minute
	DefaultRoutingBaseURL = "https://routing.trotters.cc"
	DefaultRoutingTimeout = 30 * time.Second
	DefaultMetricsPath    = "/metrics"
)

// minJWTSecretLength mirrors auth.MinSecretLength.
const minJWTSecretLength = 32

// EnvConfigPath names an explicit config file.
const EnvConfigPath = "RENDEZVOUS_CONFIG"

// Config represents the complete rendezvous-mcp configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Routing  RoutingConfig  `yaml:"routing" toml:"routing"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds transport configuration
type ServerConfig struct {
	Transport string `yaml:"transport" toml:"transport"`
	HTTPAddr  string `yaml:"http_addr" toml:"http_addr"`

	// SessionTTL drops HTTP sessions idle for longer. Zero keeps them forever.
	SessionTTL    time.Duration `yaml:"-" toml:"-"`
	SessionTTLRaw string        `yaml:"session_ttl" toml:"session_ttl"`
}

// RoutingConfig holds routing backend configuration
type RoutingConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`

	// LegacyHeaderChallenges prefers a WWW-Authenticate L402 challenge over
	// the JSON body of a 402.
	LegacyHeaderChallenges bool `yaml:"legacy_header_challenges" toml:"legacy_header_challenges"`
}

// DatabaseConfig holds the payment ledger location. An empty path disables
// the ledger.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	// Required rejects anonymous HTTP clients.
	Required bool `yaml:"required" toml:"required"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:     TransportStdio,
			HTTPAddr:      DefaultHTTPAddr,
			SessionTTL:    DefaultSessionTTL,
			SessionTTLRaw: DefaultSessionTTL.String(),
		},
		Routing: RoutingConfig{
			BaseURL:    DefaultRoutingBaseURL,
			Timeout:    DefaultRoutingTimeout,
			TimeoutRaw: DefaultRoutingTimeout.String(),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Path: DefaultMetricsPath},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML. Keys
// absent from the file keep their defaults. Environment variables in the
// format ${VAR_NAME} are expanded, then the TRANSPORT, HOST, PORT and
// VALHALLA_URL overrides are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads the file named by RENDEZVOUS_CONFIG, or the default
// path when unset. A missing default file yields Default() with the
// environment overrides applied. It returns the path actually read, or ""
// when no file was used.
func LoadDefault() (*Config, string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}

	path := DefaultPath()
	cfg, err := Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, path, err
	}

	cfg = Default()
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("validating config: %w", err)
	}
	return cfg, "", nil
}

// DefaultPath returns $XDG_CONFIG_HOME/rendezvous/config.yaml, falling back
// to ~/.config/rendezvous/config.yaml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rendezvous", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "rendezvous", "config.yaml")
	}
	return filepath.Join(home, ".config", "rendezvous", "config.yaml")
}

// ApplyEnv applies the TRANSPORT, HOST, PORT and VALHALLA_URL overrides.
// HOST and PORT replace the corresponding half of server.http_addr.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := getenv("VALHALLA_URL"); v != "" {
		c.Routing.BaseURL = v
	}

	host, port := getenv("HOST"), getenv("PORT")
	if host == "" && port == "" {
		return
	}
	curHost, curPort, err := net.SplitHostPort(c.Server.HTTPAddr)
	if err != nil {
		curHost, curPort, _ = net.SplitHostPort(DefaultHTTPAddr)
	}
	if host != "" {
		curHost = host
	}
	if port != "" {
		curPort = port
	}
	c.Server.HTTPAddr = net.JoinHostPort(curHost, curPort)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if _, _, err := net.SplitHostPort(c.Server.HTTPAddr); err != nil {
			return fmt.Errorf("server.http_addr %q is invalid: %w", c.Server.HTTPAddr, err)
		}
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session_ttl must not be negative")
	}

	u, err := url.Parse(c.Routing.BaseURL)
	if err != nil {
		return fmt.Errorf("routing.base_url is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("routing.base_url must be an absolute http or https URL")
	}
	if c.Routing.Timeout <= 0 {
		return fmt.Errorf("routing.timeout must be positive")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.required needs auth.jwt_secret")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (l LoggingConfig) SlogLevel() slog.Level {
	level, _ := parseLevel(l.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.SessionTTLRaw != "" {
		cfg.Server.SessionTTL, err = time.ParseDuration(cfg.Server.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Server.SessionTTLRaw, err)
		}
	}

	if cfg.Routing.TimeoutRaw != "" {
		cfg.Routing.Timeout, err = time.ParseDuration(cfg.Routing.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Routing.TimeoutRaw, err)
		}
	}

	return nil
}
