package daemon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/haproxy-autoconf/internal/config"
	"github.com/psantana5/haproxy-autoconf/internal/haproxy"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Domains:      config.ParseDomains("a.example.com, b.example.com"),
		Backend:      "10.0.0.5:8080",
		ConfigDir:    t.TempDir(),
		PollInterval: 5 * time.Millisecond,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

func expectedUID() string {
	sum := sha256.Sum256([]byte("a.example.com,b.example.com,"))
	return hex.EncodeToString(sum[:])
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func runAsync(d *Daemon, ctx context.Context) <-chan error {
	result := make(chan error, 1)
	go func() { result <- d.Run(ctx) }()
	return result
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func TestEndToEndSignalShutdown(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, nil)
	id := expectedUID()
	require.Equal(t, id, d.UID().String())

	backendPath := filepath.Join(cfg.ConfigDir, "200-"+id+".cfg")
	frontendPath := filepath.Join(cfg.ConfigDir, "100-"+id+".cfg")

	result := runAsync(d, context.Background())

	require.Eventually(t, func() bool {
		_, errB := os.Stat(backendPath)
		_, errF := os.Stat(frontendPath)
		return errB == nil && errF == nil
	}, 2*time.Second, 5*time.Millisecond)

	backend, err := os.ReadFile(backendPath)
	require.NoError(t, err)
	assert.Contains(t, string(backend), "backend "+id+"\n")
	assert.Contains(t, string(backend), "server "+id+" 10.0.0.5:8080\n")

	frontend, err := os.ReadFile(frontendPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(frontend), "\n"), "\n")
	assert.Equal(t, []string{
		"use_backend " + id + " if { ssl_fc_sni_end -i a.example.com }",
		"use_backend " + id + " if { ssl_fc_sni_end -i b.example.com }",
	}, lines)
	assert.True(t, strings.HasSuffix(string(frontend), "\n\n"))

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	err = waitResult(t, result)
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))
	assert.Empty(t, dirEntries(t, cfg.ConfigDir))

	expected := `
# HELP haproxy_autoconf_shutdown_signals_total Termination signals received
# TYPE haproxy_autoconf_shutdown_signals_total counter
haproxy_autoconf_shutdown_signals_total{signal="terminated"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(d.metrics.Registry(), strings.NewReader(expected),
		"haproxy_autoconf_shutdown_signals_total"))
}

func TestRepeatedTriggersReleaseOnce(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, nil)

	require.NoError(t, d.Start())
	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	require.NoError(t, d.shutdown.Run(context.Background()))
	d.Trigger()
	require.NoError(t, d.shutdown.Shutdown())

	assert.Empty(t, dirEntries(t, cfg.ConfigDir))

	// One removal per artifact, not one per trigger

	expected := `
# HELP haproxy_autoconf_artifact_removals_total Artifact removals on release by kind and result
# TYPE haproxy_autoconf_artifact_removals_total counter
haproxy_autoconf_artifact_removals_total{kind="backend",result="success"} 1
haproxy_autoconf_artifact_removals_total{kind="frontend",result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(d.metrics.Registry(), strings.NewReader(expected),
		"haproxy_autoconf_artifact_removals_total"))
}

func TestStartupFailureLeavesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConfigDir = filepath.Join(cfg.ConfigDir, "missing")

	err := New(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, haproxy.ErrInstall)
	assert.Equal(t, 1, ExitCode(err))
}

func TestStartupFrontendFailureRollsBackBackend(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, nil)

	blocker := filepath.Join(cfg.ConfigDir, haproxy.KindFrontend.FileName(d.UID()))
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0755))

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, haproxy.ErrInstall)

	_, statErr := os.Stat(filepath.Join(cfg.ConfigDir, haproxy.KindBackend.FileName(d.UID())))
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, d.Ready())
}

func TestRemovalFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, nil)

	require.NoError(t, d.Start())
	require.True(t, d.Ready())

	require.NoError(t, os.Remove(d.set.Frontend.Path()))

	d.Trigger()
	err := d.shutdown.Run(context.Background())
	require.Error(t, err, "the manager reports the failed removal")
	assert.ErrorIs(t, err, haproxy.ErrRemove)

	assert.Empty(t, dirEntries(t, cfg.ConfigDir), "backend is removed regardless")
	assert.False(t, d.Ready())
}

func TestRunReturnsNilOnRemovalFailure(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, nil)
	id := d.UID().String()
	frontendPath := filepath.Join(cfg.ConfigDir, "100-"+id+".cfg")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := runAsync(d, ctx)

	require.Eventually(t, func() bool {
		_, err := os.Stat(frontendPath)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, os.Remove(frontendPath))

	cancel()
	assert.NoError(t, waitResult(t, result))
	assert.Empty(t, dirEntries(t, cfg.ConfigDir))
}

func TestMetricsEndpointServesHealth(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"
	d := New(cfg, nil)

	require.NoError(t, d.Start())
	addr := d.MetricsAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	d.Trigger()
	require.NoError(t, d.shutdown.Run(context.Background()))

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err, "server should be stopped after shutdown")
}

func TestMetricsListenFailureInstallsNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsAddr = "256.0.0.1:bad"

	err := New(cfg, nil).Start()
	require.Error(t, err)
	assert.Empty(t, dirEntries(t, cfg.ConfigDir))
}
