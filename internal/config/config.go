// Package config provides TOML/YAML configuration loading with defaults,
// structural validation and environment variable substitution for the
// executor, plus the shared Store that holds the live snapshot.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is used when neither --config nor CONFIG_PATH is set.
	DefaultPath = "config/bot.toml"

	// EnvPath names the environment variable that overrides DefaultPath.
	EnvPath = "CONFIG_PATH"

	// DefaultGasPrice is 0.2 gwei expressed in wei.
	DefaultGasPrice uint64 = 200_000_000
)

// ErrMissingBotName is returned when the required [bot] group has no name.
var ErrMissingBotName = errors.New("bot.name is required")

// Format identifies the on-disk encoding of a configuration file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the decoder from the file extension. Anything that is
// not .yaml/.yml is treated as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Config is one immutable configuration snapshot. Once returned by Load it
// must not be modified; a reload produces a new Config instead.
type Config struct {
	Bot     BotConfig     `toml:"bot" yaml:"bot" json:"bot"`
	Server  ServerConfig  `toml:"server" yaml:"server" json:"server"`
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`
	Reload  ReloadConfig  `toml:"reload" yaml:"reload" json:"reload"`
	Admin   AdminConfig   `toml:"admin" yaml:"admin" json:"admin"`

	// Warnings holds non-fatal issues detected while loading. Kept on the
	// snapshot so concurrent loads never share state.
	Warnings []string `toml:"-" yaml:"-" json:"-"`
}

// BotConfig holds the executor's domain settings.
type BotConfig struct {
	Name     string `toml:"name" yaml:"name" json:"name"`
	RPCURL   string `toml:"rpc_url" yaml:"rpc_url" json:"rpc_url,omitempty"`
	GasPrice uint64 `toml:"gas_price" yaml:"gas_price" json:"gas_price"` // wei; default: 200000000
}

// ServerConfig holds the status HTTP server settings. Read once at startup.
type ServerConfig struct {
	Addr            string        `toml:"addr" yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	PrometheusPath  string        `toml:"prometheus_path" yaml:"prometheus_path" json:"prometheus_path"`

	// Serve TLS when both are set. The files are re-read when they change.
	TLSCertFile string `toml:"tls_cert_file" yaml:"tls_cert_file" json:"tls_cert_file,omitempty"`
	TLSKeyFile  string `toml:"tls_key_file" yaml:"tls_key_file" json:"tls_key_file,omitempty"`
}

// TLSEnabled reports whether a certificate and key are configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// LoggingConfig holds log output settings. Only Level is applied on reload.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level" json:"level"`                      // debug, info, warn, error; default: info
	Format     string `toml:"format" yaml:"format" json:"format"`                   // json or text; default: json
	Output     string `toml:"output" yaml:"output" json:"output"`                   // stdout, stderr or file path; default: stdout
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`    // default: 100
	MaxBackups int    `toml:"max_backups" yaml:"max_backups" json:"max_backups"`    // default: 3
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days" json:"max_age_days"` // default: 30
}

// ReloadConfig controls how reload requests are produced.
type ReloadConfig struct {
	Watch    *bool         `toml:"watch" yaml:"watch" json:"watch"`
	Debounce time.Duration `toml:"debounce" yaml:"debounce" json:"debounce"`
	Schedule string        `toml:"schedule" yaml:"schedule" json:"schedule,omitempty"`
}

// WatchEnabled reports whether file watching is on (defaults to true).
func (r ReloadConfig) WatchEnabled() bool {
	if r.Watch == nil {
		return true
	}
	return *r.Watch
}

// AdminConfig holds the admin API settings.
type AdminConfig struct {
	Enabled         bool       `toml:"enabled" yaml:"enabled" json:"enabled"`
	IPAllowlist     []string   `toml:"ip_allowlist" yaml:"ip_allowlist" json:"ip_allowlist"`
	ReloadPerMinute float64    `toml:"reload_per_minute" yaml:"reload_per_minute" json:"reload_per_minute"`
	ReloadBurst     int        `toml:"reload_burst" yaml:"reload_burst" json:"reload_burst"`
	Auth            AuthConfig `toml:"auth" yaml:"auth" json:"auth"`
}

// AuthConfig holds JWT bearer settings for mutating admin endpoints.
type AuthConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	JWTSecret string `toml:"jwt_secret" yaml:"jwt_secret" json:"jwt_secret"`
	Issuer    string `toml:"issuer" yaml:"issuer" json:"issuer"`
	Audience  string `toml:"audience" yaml:"audience" json:"audience"`
	Scope     string `toml:"scope" yaml:"scope" json:"scope"`
}

// ValidLogLevels are the accepted logging.level strings.
var ValidLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value. Unset variables are left as-is.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses the configuration file at path. The decoder is
// chosen by FormatForPath.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := LoadFromBytes(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromBytes parses configuration from raw bytes in the given format,
// applies defaults and validates the result.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	expanded := expandEnvVars(string(data))

	// Seeded before decoding so only an absent gas_price takes the default;
	// an explicit 0 is kept.
	cfg := Config{Bot: BotConfig{GasPrice: DefaultGasPrice}}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		if err := dec.Decode(&cfg); err != nil {
			// An empty document decodes to io.EOF; treat it as empty config
			// so validation reports the missing group instead.
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	default:
		md, err := toml.Decode(expanded, &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		for _, key := range md.Undecoded() {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown key %q ignored", key.String()))
		}
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.Warnings = append(cfg.Warnings, collectWarnings(&cfg)...)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "0.0.0.0:9000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.PrometheusPath == "" {
		cfg.Server.PrometheusPath = "/metrics/prometheus"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 30
	}

	if cfg.Reload.Debounce == 0 {
		cfg.Reload.Debounce = 300 * time.Millisecond
	}

	if cfg.Admin.ReloadPerMinute == 0 {
		cfg.Admin.ReloadPerMinute = 6
	}
	if cfg.Admin.ReloadBurst == 0 {
		cfg.Admin.ReloadBurst = 2
	}
	if cfg.Admin.Auth.Scope == "" {
		cfg.Admin.Auth.Scope = "config:reload"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Bot.Name) == "" {
		return ErrMissingBotName
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		return fmt.Errorf("server.addr: %w", err)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must be non-negative")
	}
	if !strings.HasPrefix(cfg.Server.PrometheusPath, "/") {
		return fmt.Errorf("server.prometheus_path must start with /")
	}
	switch cfg.Server.PrometheusPath {
	case "/health", "/metrics", "/status":
		return fmt.Errorf("server.prometheus_path %q collides with a built-in endpoint", cfg.Server.PrometheusPath)
	}

	if (cfg.Server.TLSCertFile == "") != (cfg.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}

	// Logging validation
	if !ValidLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be positive when output is a file path")
		}
	}

	if cfg.Reload.Debounce < 0 {
		return fmt.Errorf("reload.debounce must be non-negative")
	}
	if cfg.Reload.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Reload.Schedule); err != nil {
			return fmt.Errorf("reload.schedule: %w", err)
		}
	}

	// Admin validation
	if cfg.Admin.Enabled {
		if len(cfg.Admin.IPAllowlist) == 0 {
			return fmt.Errorf("admin.ip_allowlist is required when admin is enabled")
		}
		for i, cidr := range cfg.Admin.IPAllowlist {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return fmt.Errorf("admin.ip_allowlist[%d]: invalid CIDR %q: %w", i, cidr, err)
			}
		}
	}
	if cfg.Admin.ReloadPerMinute < 0 {
		return fmt.Errorf("admin.reload_per_minute must be positive")
	}
	if cfg.Admin.ReloadBurst < 0 {
		return fmt.Errorf("admin.reload_burst must be positive")
	}
	if cfg.Admin.Auth.Enabled {
		if cfg.Admin.Auth.JWTSecret == "" {
			return fmt.Errorf("admin.auth.jwt_secret is required when auth is enabled")
		}
		if cfg.Admin.Auth.Issuer == "" {
			return fmt.Errorf("admin.auth.issuer is required when auth is enabled")
		}
		if cfg.Admin.Auth.Audience == "" {
			return fmt.Errorf("admin.auth.audience is required when auth is enabled")
		}
	}

	return nil
}

func collectWarnings(cfg *Config) []string {
	var warnings []string
	if strings.Contains(cfg.Bot.RPCURL, "${") {
		warnings = append(warnings, "bot.rpc_url contains unresolved environment variable")
	}
	if cfg.Admin.Auth.Enabled && strings.Contains(cfg.Admin.Auth.JWTSecret, "${") {
		warnings = append(warnings, "admin.auth.jwt_secret contains unresolved environment variable")
	}
	if cfg.Admin.Enabled && !cfg.Admin.Auth.Enabled {
		warnings = append(warnings, "admin API enabled without auth; relying on ip_allowlist only")
	}
	return warnings
}
