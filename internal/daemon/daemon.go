package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/common/version"

	"github.com/psantana5/haproxy-autoconf/internal/config"
	"github.com/psantana5/haproxy-autoconf/internal/fsext"
	"github.com/psantana5/haproxy-autoconf/internal/haproxy"
	"github.com/psantana5/haproxy-autoconf/internal/uid"
	"github.com/psantana5/haproxy-autoconf/pkg/logging"
	"github.com/psantana5/haproxy-autoconf/pkg/metrics"
	"github.com/psantana5/haproxy-autoconf/pkg/shutdown"
)

const metricsShutdownTimeout = 5 * time.Second

// Daemon keeps one backend/frontend pair installed until a termination
// signal arrives, then removes both and returns.
type Daemon struct {
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *metrics.Collector
	shutdown *shutdown.Manager

	uid    uid.UID
	set    *haproxy.Set
	server *http.Server
}

// New creates a daemon for the given configuration
func New(cfg *config.Config, logger *logging.Logger) *Daemon {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.NewCollector(),
		shutdown: shutdown.New(cfg.PollInterval, logger),
		uid:      uid.New(cfg.Domains),
	}
}

// UID returns the identifier derived from the configured domains
func (d *Daemon) UID() uid.UID {
	return d.uid
}

// Metrics returns the daemon's collector
func (d *Daemon) Metrics() *metrics.Collector {
	return d.metrics
}

// Trigger requests shutdown as if a signal had arrived
func (d *Daemon) Trigger() {
	d.shutdown.Trigger()
}

// Ready reports whether both artifacts are installed
func (d *Daemon) Ready() bool {
	if d.set == nil {
		return false
	}
	for _, a := range d.set.Artifacts() {
		if a.State() != haproxy.StateInstalled {
			return false
		}
	}
	return true
}

// Run installs the artifacts, waits for a termination signal (or ctx), and
// releases them. A nil return means a clean shutdown; removal failures are
// logged but do not make Run fail. Startup errors are returned before any
// artifact is left on disk.
func (d *Daemon) Run(ctx context.Context) error {
	// Subscribe first so a signal during startup still goes through cleanup.
	d.shutdown.OnSignal(d.metrics.RecordSignal)
	d.shutdown.Notify()
	defer d.shutdown.Stop()

	if err := d.Start(); err != nil {
		return err
	}

	d.logger.Info("haproxy-autoconf is up and running...", logging.Fields{
		"version":  version.Version,
		"uid":      d.uid.String(),
		"backend":  d.set.Backend.Path(),
		"frontend": d.set.Frontend.Path(),
	})

	if err := d.shutdown.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("Shutdown finished with errors", logging.Fields{"error": err})
	}
	return nil
}

// Start opens the optional metrics listener, installs both artifacts and
// registers their release with the shutdown manager.
func (d *Daemon) Start() error {
	var listener net.Listener
	if d.cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", d.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on metrics address %s: %w", d.cfg.MetricsAddr, err)
		}
		listener = ln
	}

	d.checkFilesystem()

	if len(d.cfg.Domains) == 0 {
		d.logger.Warn("No domains configured; the frontend will contain no routing rules")
	}

	set, err := haproxy.Install(d.cfg.ConfigDir, d.uid, d.cfg.Backend, d.cfg.Domains)
	d.recordInstall(err)
	if err != nil {
		if listener != nil {
			listener.Close()
		}
		return err
	}
	d.set = set

	// LIFO: frontend is released before backend
	d.shutdown.Register("backend config", d.release(set.Backend))
	d.shutdown.Register("frontend config", d.release(set.Frontend))

	for _, a := range set.Artifacts() {
		d.logger.Debug("Installed config", logging.Fields{
			"kind": string(a.Kind()),
			"path": a.Path(),
		})
	}

	if listener != nil {
		d.serveMetrics(listener)
	}
	return nil
}

// checkFilesystem warns when the inbox sits on a filesystem where rename is
// not guaranteed to be atomic for readers.
func (d *Daemon) checkFilesystem() {
	mount, err := fsext.Mount(d.cfg.ConfigDir)
	if err != nil {
		d.logger.Debug("Could not determine filesystem of config dir", logging.Fields{"error": err})
		return
	}

	fields := logging.Fields{
		"dir":        d.cfg.ConfigDir,
		"mountpoint": mount.Mountpoint,
		"fstype":     mount.Fstype,
	}
	if fsext.IsNetworkFS(mount.Fstype) {
		d.logger.Warn("Config dir is on a network filesystem; atomic replacement may not hold", fields)
		return
	}
	d.logger.Debug("Config dir filesystem", fields)
}

func (d *Daemon) recordInstall(err error) {
	if err == nil {
		d.metrics.RecordInstall(string(haproxy.KindBackend), nil)
		d.metrics.RecordInstall(string(haproxy.KindFrontend), nil)
		return
	}

	var ie *haproxy.InstallError
	if !errors.As(err, &ie) {
		return
	}
	if ie.Kind == haproxy.KindFrontend {
		// The backend was written and then rolled back
		d.metrics.RecordInstall(string(haproxy.KindBackend), nil)
		d.metrics.RecordRemoval(string(haproxy.KindBackend), nil)
	}
	d.metrics.RecordInstall(string(ie.Kind), err)
}

func (d *Daemon) release(a *haproxy.Artifact) func(context.Context) error {
	remove := shutdown.ReleaseResource(a)
	return func(ctx context.Context) error {
		err := remove(ctx)
		d.metrics.RecordRemoval(string(a.Kind()), err)
		if err != nil {
			return err
		}
		d.logger.Info("Removed config", logging.Fields{
			"kind": string(a.Kind()),
			"path": a.Path(),
		})
		return nil
	}
}

func (d *Daemon) serveMetrics(listener net.Listener) {
	d.server = metrics.NewServer(listener.Addr().String(), d.metrics, d.Ready)
	d.shutdown.Register("metrics server", shutdown.StopHTTPServer(d.server, "metrics", metricsShutdownTimeout))

	go func() {
		d.logger.Info("Metrics endpoint listening", logging.Fields{"addr": listener.Addr().String()})
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Metrics server stopped", logging.Fields{"error": err})
		}
	}()
}

// MetricsAddr returns the bound metrics address, or "" when disabled
func (d *Daemon) MetricsAddr() string {
	if d.server == nil {
		return ""
	}
	return d.server.Addr
}

// ExitCode maps the result of the command line to the process exit status:
// 0 after a clean shutdown, 1 when startup failed.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
