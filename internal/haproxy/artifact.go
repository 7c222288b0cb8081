package haproxy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/psantana5/haproxy-autoconf/internal/fsext"
	"github.com/psantana5/haproxy-autoconf/internal/uid"
)

var (
	// ErrInstall wraps every failure to write an artifact
	ErrInstall = errors.New("install artifact")
	// ErrRemove wraps every failure to delete an artifact on release
	ErrRemove = errors.New("remove artifact")
)

// InstallError reports which artifact could not be written. It matches ErrInstall.
type InstallError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrInstall, e.Kind, e.Path, e.Err)
}

// Unwrap implements error unwrapping
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInstall) hold
func (e *InstallError) Is(target error) bool {
	return target == ErrInstall
}

// Artifact is one configuration file owned by this process. It is written
// on construction and deleted by Release; it cannot be reinstalled.
type Artifact struct {
	kind  Kind
	path  string
	mu    sync.Mutex
	state State
}

// NewBackendConfig installs "<dir>/200-<id>.cfg" declaring backend id that
// forwards to address.
func NewBackendConfig(dir string, id uid.UID, address string) (*Artifact, error) {
	return install(dir, KindBackend, id, RenderBackend(id, address))
}

// NewFrontendConfig installs "<dir>/100-<id>.cfg" routing every domain to
// backend id by SNI suffix.
func NewFrontendConfig(dir string, id uid.UID, domains []string) (*Artifact, error) {
	return install(dir, KindFrontend, id, RenderFrontend(id, domains))
}

func install(dir string, kind Kind, id uid.UID, content string) (*Artifact, error) {
	a := &Artifact{
		kind:  kind,
		path:  filepath.Join(dir, kind.FileName(id)),
		state: StateUninstalled,
	}

	if err := fsext.WriteAtomic(a.path, []byte(content)); err != nil {
		return nil, &InstallError{Kind: kind, Path: a.path, Err: err}
	}
	if err := a.transition(StateInstalled); err != nil {
		return nil, err
	}
	return a, nil
}

// Kind returns whether this is the frontend or backend artifact
func (a *Artifact) Kind() Kind {
	return a.kind
}

// Path returns the installed file path
func (a *Artifact) Path() string {
	return a.path
}

// State returns the current lifecycle state
func (a *Artifact) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Release deletes the file. The artifact is Removed afterwards even when the
// delete fails; the failure is returned for reporting only. Calling Release
// again is a no-op.
func (a *Artifact) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if IsTerminalState(a.state) {
		return nil
	}
	if err := ValidateTransition(a.state, StateRemoved); err != nil {
		return err
	}
	a.state = StateRemoved

	if err := os.Remove(a.path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRemove, a.kind, err)
	}
	return nil
}

func (a *Artifact) transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ValidateTransition(a.state, to); err != nil {
		return err
	}
	a.state = to
	return nil
}
