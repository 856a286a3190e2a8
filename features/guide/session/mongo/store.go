package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	clientsmongo "guidewalk.dev/guidewalk/features/guide/session/mongo/clients/mongo"
	"guidewalk.dev/guidewalk/runtime/guide/session"
)

// Store implements session.Store by delegating to the Mongo client. Saves
// replace the whole snapshot, so per-session writers must already be
// serialized by the caller (the driver holds a per-session lock).
type Store struct {
	client clientsmongo.Client
	newID  func() string
	now    func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithIDs overrides session ID generation. Tests use this for determinism.
func WithIDs(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore builds a Store using the provided client.
func NewStore(client clientsmongo.Client, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	s := &Store{client: client, newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create implements session.Store.
func (s *Store) Create(ctx context.Context, workItemID string) (session.Session, error) {
	if workItemID == "" {
		return session.Session{}, errors.New("work item id is required")
	}
	now := s.now().UTC()
	sess := session.Session{
		ID:         s.newID(),
		WorkItemID: workItemID,
		Phase:      session.PhasePlanning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.client.InsertSession(ctx, sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, sessionID string) (session.Session, error) {
	return s.client.LoadSession(ctx, sessionID)
}

// Save implements session.Store. Saving a deleted session returns
// session.ErrSessionNotFound so in-flight turns observe the deletion.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	sess.UpdatedAt = s.now().UTC()
	return s.client.ReplaceSession(ctx, sess)
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	return s.client.DeleteSession(ctx, sessionID)
}
