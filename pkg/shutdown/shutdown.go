package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/psantana5/haproxy-autoconf/pkg/logging"
)

// DefaultPollInterval is how often Run checks the shutdown flag
const DefaultPollInterval = 100 * time.Millisecond

// DefaultSignals are the signals that request termination
var DefaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

type shutdownFunc struct {
	name string
	fn   func(context.Context) error
}

// Manager handles graceful shutdown.
//
// Signal delivery only sets an atomic flag. The goroutine calling Run polls
// that flag and runs the registered functions, so all cleanup work happens
// on one goroutine and exactly once.
type Manager struct {
	shutdownFuncs []shutdownFunc
	mu            sync.Mutex
	pollInterval  time.Duration
	logger        *logging.Logger

	flag atomic.Bool
	once sync.Once

	sigChan    chan os.Signal
	notifyOnce sync.Once
	stopOnce   sync.Once
	onSignal   func(os.Signal)
}

// New creates a new shutdown manager
func New(pollInterval time.Duration, logger *logging.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		shutdownFuncs: make([]shutdownFunc, 0),
		pollInterval:  pollInterval,
		logger:        logger.WithField("component", "shutdown"),
	}
}

// Register adds a shutdown function
// Functions are called in reverse order (LIFO)
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownFuncs = append(m.shutdownFuncs, shutdownFunc{name: name, fn: fn})
}

// OnSignal sets a hook called for every received signal, before the flag is set.
// It must be set before Notify.
func (m *Manager) OnSignal(fn func(os.Signal)) {
	m.onSignal = fn
}

// Notify subscribes to the given signals, or DefaultSignals when none are given.
// Every delivery sets the shutdown flag. Only the first call subscribes.
func (m *Manager) Notify(signals ...os.Signal) {
	m.notifyOnce.Do(func() {
		if len(signals) == 0 {
			signals = DefaultSignals
		}

		m.sigChan = make(chan os.Signal, len(signals))
		signal.Notify(m.sigChan, signals...)

		go func(ch <-chan os.Signal) {
			for sig := range ch {
				if m.onSignal != nil {
					m.onSignal(sig)
				}
				m.Trigger()
			}
		}(m.sigChan)
	})
}

// Stop unsubscribes from signal delivery. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.sigChan != nil {
			signal.Stop(m.sigChan)
			close(m.sigChan)
		}
	})
}

// Trigger requests shutdown. Setting an already set flag has no effect.
func (m *Manager) Trigger() {
	m.flag.Store(true)
}

// Triggered reports whether shutdown has been requested
func (m *Manager) Triggered() bool {
	return m.flag.Load()
}

// Run polls the shutdown flag until it is set or ctx is cancelled, then runs
// the shutdown functions. It returns the joined errors of the shutdown
// functions, or ctx.Err() if the context ended the loop.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for !m.Triggered() {
		select {
		case <-ctx.Done():
			m.logger.Info("Context cancelled; shutting down")
			if err := m.Shutdown(); err != nil {
				return errors.Join(ctx.Err(), err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}

	m.logger.Info("Got signal; shutting down")
	return m.Shutdown()
}

// Shutdown executes all registered shutdown functions once. Later calls
// return nil without doing anything. Failures are logged and joined; every
// function runs regardless.
func (m *Manager) Shutdown() error {
	var result error
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		ctx := context.Background()

		var errs []error
		// Execute shutdown functions in reverse order (LIFO)
		for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
			sf := m.shutdownFuncs[i]
			if err := sf.fn(ctx); err != nil {
				m.logger.Error("Shutdown function failed", logging.Fields{
					"name":  sf.name,
					"error": err,
				})
				errs = append(errs, fmt.Errorf("%s: %w", sf.name, err))
			}
		}
		result = errors.Join(errs...)

		m.logger.Info("Graceful shutdown complete")
	})
	return result
}

// StopHTTPServer creates a shutdown function for http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }, name string, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop %s server: %w", name, err)
		}
		return nil
	}
}

// ReleaseResource creates a shutdown function for anything with a Release method
func ReleaseResource(resource interface{ Release() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return resource.Release()
	}
}
