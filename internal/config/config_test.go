package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvDomains, EnvBackend, EnvConfigDir, EnvPollInterval,
		EnvLogLevel, EnvLogFormat, EnvMetricsAddr,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDomains, "a.example.com, b.example.com")
	t.Setenv(EnvBackend, "10.0.0.5:8080")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Domains)
	assert.Equal(t, "10.0.0.5:8080", cfg.Backend)
	assert.Equal(t, DefaultConfigDir, cfg.ConfigDir)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDomains, "a.com")
	t.Setenv(EnvBackend, "backend:80")
	t.Setenv(EnvConfigDir, "/tmp/inbox")
	t.Setenv(EnvPollInterval, "250ms")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "JSON")
	t.Setenv(EnvMetricsAddr, ":9102")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/inbox", cfg.ConfigDir)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
}

func TestLoadMissingDomains(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, "10.0.0.5:8080")

	_, err := Load(NewViper())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), EnvDomains)
}

func TestLoadMissingBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDomains, "a.com")

	_, err := Load(NewViper())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), EnvBackend)
}

func TestLoadEmptyDomainsArePresent(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDomains, "")
	t.Setenv(EnvBackend, "10.0.0.5:8080")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Empty(t, cfg.Domains)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable poll interval", EnvPollInterval, "soon"},
		{"zero poll interval", EnvPollInterval, "0s"},
		{"negative poll interval", EnvPollInterval, "-1s"},
		{"unknown log format", EnvLogFormat, "xml"},
		{"unknown log level", EnvLogLevel, "verbose"},
		{"empty config dir", EnvConfigDir, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvDomains, "a.com")
			t.Setenv(EnvBackend, "10.0.0.5:8080")
			t.Setenv(tt.key, tt.value)

			_, err := Load(NewViper())
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestParseDomains(t *testing.T) {
	tests := []struct {
		raw      string
		expected []string
	}{
		{"a.com,b.com", []string{"a.com", "b.com"}},
		{" a.com , b.com ", []string{"a.com", "b.com"}},
		{"a.com,,b.com,", []string{"a.com", "b.com"}},
		{"", []string{}},
		{" , ,", []string{}},
		{"a.com,a.com", []string{"a.com", "a.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDomains(tt.raw))
		})
	}
}
