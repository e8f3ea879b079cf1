package http

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/counselsim/internal/metrics"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// ErrSessionNotFound indicates an unknown or already removed session id.
var ErrSessionNotFound = errors.New("session not found")

// sessionEntry pairs a session with its own lock. Operations on one
// session are serialized; distinct sessions proceed independently.
type sessionEntry struct {
	mu   sync.Mutex
	sess *session.Session
}

// Registry holds live sessions keyed by id. The registry lock guards only
// the map; each session runs under its entry's lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
	metrics *metrics.Metrics
}

// NewRegistry creates an empty session registry.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		entries: make(map[string]*sessionEntry),
		metrics: m,
	}
}

// Add registers a session and returns its generated id.
func (r *Registry) Add(sess *session.Session) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.entries[id] = &sessionEntry{sess: sess}
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	return id
}

// Do runs fn with the session locked. Returns ErrSessionNotFound for
// unknown ids; otherwise fn's error.
func (r *Registry) Do(id string, fn func(*session.Session) error) error {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.sess)
}

// Remove deletes a session. Returns false for unknown ids. An operation
// already running on the session finishes undisturbed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	n := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.metrics.SetActiveSessions(n)
	}
	return ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
