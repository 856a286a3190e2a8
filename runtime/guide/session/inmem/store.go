// Package inmem provides an in-memory implementation of session.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation (for example features/session/mongo).
package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"guidewalk.dev/guidewalk/runtime/guide/session"
)

// Store is an in-memory implementation of session.Store.
// It is safe for concurrent use; saves for a given session ID are
// linearizable because every mutation holds the store lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]session.Session),
		now:      time.Now,
	}
}

// NewWithClock returns an empty Store using the provided clock.
// Tests use this to make timestamps deterministic.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		sessions: make(map[string]session.Session),
		now:      now,
	}
}

// Create implements session.Store.
func (s *Store) Create(_ context.Context, workItemID string) (session.Session, error) {
	if workItemID == "" {
		return session.Session{}, errors.New("work item id is required")
	}

	now := s.now().UTC()
	sess := session.Session{
		ID:         uuid.NewString(),
		WorkItemID: workItemID,
		Phase:      session.PhasePlanning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return sess, nil
}

// Load implements session.Store.
func (s *Store) Load(_ context.Context, sessionID string) (session.Session, error) {
	if sessionID == "" {
		return session.Session{}, errors.New("session id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.sessions[sessionID]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	return existing.Clone(), nil
}

// Save implements session.Store. The stored snapshot is fully replaced;
// saving a deleted session returns session.ErrSessionNotFound.
func (s *Store) Save(_ context.Context, sess session.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}
	sess.UpdatedAt = s.now().UTC()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete implements session.Store.
func (s *Store) Delete(_ context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}
