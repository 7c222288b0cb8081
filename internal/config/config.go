package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/haproxy-autoconf/pkg/logging"
)

// Environment variables. Domains and backend are required; the rest have defaults.
const (
	EnvDomains      = "HAPROXY_DOMAINS"
	EnvBackend      = "HAPROXY_BACKEND"
	EnvConfigDir    = "HAPROXY_CONFIG_DIR"
	EnvPollInterval = "HAPROXY_POLL_INTERVAL"
	EnvLogLevel     = "HAPROXY_LOG_LEVEL"
	EnvLogFormat    = "HAPROXY_LOG_FORMAT"
	EnvMetricsAddr  = "HAPROXY_METRICS_ADDR"
)

// Viper keys
const (
	KeyDomains      = "domains"
	KeyBackend      = "backend"
	KeyConfigDir    = "config_dir"
	KeyPollInterval = "poll_interval"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyMetricsAddr  = "metrics_addr"
)

// Defaults
const (
	DefaultConfigDir    = "/usr/local/etc/haproxy.inbox"
	DefaultPollInterval = 100 * time.Millisecond
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

var (
	// ErrMissingEnv is returned when a required variable is not set
	ErrMissingEnv = errors.New("missing environment variable")
	// ErrInvalidValue is returned when an optional setting cannot be parsed
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Config is the routing intent plus daemon settings, read once at startup.
type Config struct {
	Domains      []string
	Backend      string
	ConfigDir    string
	PollInterval time.Duration
	LogLevel     string
	LogFormat    string
	MetricsAddr  string
}

// NewViper returns a viper instance bound to the HAPROXY_* environment.
// Set-but-empty variables count as present.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AllowEmptyEnv(true)

	v.SetDefault(KeyConfigDir, DefaultConfigDir)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyMetricsAddr, "")

	bindings := map[string]string{
		KeyDomains:      EnvDomains,
		KeyBackend:      EnvBackend,
		KeyConfigDir:    EnvConfigDir,
		KeyPollInterval: EnvPollInterval,
		KeyLogLevel:     EnvLogLevel,
		KeyLogFormat:    EnvLogFormat,
		KeyMetricsAddr:  EnvMetricsAddr,
	}
	for key, env := range bindings {
		// BindEnv only fails without arguments
		_ = v.BindEnv(key, env)
	}

	return v
}

// Load reads the full daemon configuration. Missing required variables fail
// with ErrMissingEnv before anything is touched on disk.
func Load(v *viper.Viper) (*Config, error) {
	domains, err := LoadDomains(v)
	if err != nil {
		return nil, err
	}

	if !v.IsSet(KeyBackend) {
		return nil, fmt.Errorf("%w: %s (backend address)", ErrMissingEnv, EnvBackend)
	}

	pollInterval, err := duration(v, KeyPollInterval)
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidValue, EnvPollInterval, pollInterval)
	}

	logLevel := strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel)))
	if _, err := logging.ParseLevel(logLevel); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, EnvLogLevel, err)
	}

	logFormat := strings.ToLower(v.GetString(KeyLogFormat))
	if logFormat != string(logging.FormatText) && logFormat != string(logging.FormatJSON) {
		return nil, fmt.Errorf("%w: %s must be text or json, got %q", ErrInvalidValue, EnvLogFormat, logFormat)
	}

	configDir := v.GetString(KeyConfigDir)
	if configDir == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidValue, EnvConfigDir)
	}

	return &Config{
		Domains:      domains,
		Backend:      v.GetString(KeyBackend),
		ConfigDir:    configDir,
		PollInterval: pollInterval,
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		MetricsAddr:  v.GetString(KeyMetricsAddr),
	}, nil
}

// LoadDomains reads only the domain list.
func LoadDomains(v *viper.Viper) ([]string, error) {
	if !v.IsSet(KeyDomains) {
		return nil, fmt.Errorf("%w: %s (managed domains)", ErrMissingEnv, EnvDomains)
	}
	return ParseDomains(v.GetString(KeyDomains)), nil
}

// ParseDomains splits a comma-separated list, trims whitespace and drops
// empty entries. Domain syntax is not validated.
func ParseDomains(raw string) []string {
	domains := make([]string, 0)
	for _, d := range strings.Split(raw, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// duration accepts both typed defaults/flags and string values from the environment.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	switch val := v.Get(key).(type) {
	case time.Duration:
		return val, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidValue, EnvPollInterval, err)
		}
		return d, nil
	default:
		return v.GetDuration(key), nil
	}
}
