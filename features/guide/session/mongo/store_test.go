package mongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guidewalk.dev/guidewalk/runtime/guide/session"
)

type fakeClient struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newFakeClient() *fakeClient {
	return &fakeClient{sessions: make(map[string]session.Session)}
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) Ping(context.Context) error { return nil }

func (c *fakeClient) InsertSession(_ context.Context, sess session.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sess.ID] = sess.Clone()
	return nil
}

func (c *fakeClient) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (c *fakeClient) ReplaceSession(_ context.Context, sess session.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}
	c.sessions[sess.ID] = sess.Clone()
	return nil
}

func (c *fakeClient) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(c.sessions, sessionID)
	return true, nil
}

func TestStoreCreate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewStore(newFakeClient(),
		WithIDs(func() string { return "sess-1" }),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "wi-1", sess.WorkItemID)
	assert.Equal(t, session.PhasePlanning, sess.Phase)
	assert.Equal(t, now, sess.CreatedAt)

	loaded, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)
}

func TestStoreSaveStampsUpdatedAt(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewStore(newFakeClient(),
		WithIDs(func() string { return "sess-1" }),
		WithClock(func() time.Time { return current }))
	require.NoError(t, err)

	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)

	current = current.Add(time.Minute)
	sess.Phase = session.PhaseDrafting
	require.NoError(t, store.Save(context.Background(), sess))

	loaded, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.PhaseDrafting, loaded.Phase)
	assert.Equal(t, current, loaded.UpdatedAt)
}

func TestStoreSaveAfterDelete(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)

	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)

	deleted, err := store.Delete(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	assert.ErrorIs(t, store.Save(context.Background(), sess), session.ErrSessionNotFound)
}

func TestStoreRequiresClient(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}
