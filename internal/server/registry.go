package server

import (
	"errors"
	"sync"

	"github.com/go-omads/omads/internal/session"
)

// Sentinel errors for Registry operations.
var (
	// ErrSessionNotFound indicates no session exists for the given id.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrDuplicateSession indicates a session already exists for the given id.
	ErrDuplicateSession = errors.New("server: duplicate session id")
)

// Registry tracks every live Session so the admin/control plane can list
// and inspect them (spec §6 "Admin/control plane"). Grounded on
// bfd.Manager's mutex-guarded session map; unlike a Session itself (single-
// threaded per spec §5), the Registry is shared across the HTTP handler's
// goroutines and therefore needs the lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session.Session)}
}

// Register adds s to the registry, keyed by its SessionID.
func (r *Registry) Register(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.SessionID()
	if _, exists := r.sessions[id]; exists {
		return ErrDuplicateSession
	}
	r.sessions[id] = s
	return nil
}

// Unregister removes the session with the given id, typically once it
// reaches a terminal phase (spec §4.1).
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Lookup returns the session with the given id, if present.
func (r *Registry) Lookup(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Sessions returns a snapshot of every registered session. The order of
// the returned sessions is not defined.
func (r *Registry) Sessions() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
