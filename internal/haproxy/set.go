package haproxy

import (
	"errors"

	"github.com/psantana5/haproxy-autoconf/internal/uid"
)

// Set is the backend/frontend pair installed for one domain set.
type Set struct {
	UID      uid.UID
	Backend  *Artifact
	Frontend *Artifact
}

// Install writes the backend artifact and then the frontend artifact that
// references it. If the frontend cannot be written the backend is released
// again, so a failed install never leaves an orphaned file behind.
func Install(dir string, id uid.UID, address string, domains []string) (*Set, error) {
	backend, err := NewBackendConfig(dir, id, address)
	if err != nil {
		return nil, err
	}

	frontend, err := NewFrontendConfig(dir, id, domains)
	if err != nil {
		return nil, errors.Join(err, backend.Release())
	}

	return &Set{
		UID:      id,
		Backend:  backend,
		Frontend: frontend,
	}, nil
}

// Artifacts returns the pair in release order: frontend rules first, so
// HAProxy never sees a rule pointing at a missing backend.
func (s *Set) Artifacts() []*Artifact {
	return []*Artifact{s.Frontend, s.Backend}
}
