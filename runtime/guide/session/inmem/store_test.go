package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guidewalk.dev/guidewalk/runtime/guide/session"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewWithClock(func() time.Time { return now })

	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "wi-1", sess.WorkItemID)
	assert.Equal(t, session.PhasePlanning, sess.Phase)
	assert.Equal(t, now, sess.CreatedAt)

	loaded, err := store.Load(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)
}

func TestCreateRequiresWorkItemID(t *testing.T) {
	_, err := New().Create(context.Background(), "")
	require.Error(t, err)
}

func TestLoadUnknownSession(t *testing.T) {
	_, err := New().Load(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSaveReplacesSnapshot(t *testing.T) {
	store := New()
	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)

	sess.Phase = session.PhaseDrafting
	sess.Sections = []session.Section{{Name: "Overview", Content: "text"}}
	require.NoError(t, store.Save(context.Background(), sess))

	loaded, err := store.Load(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.PhaseDrafting, loaded.Phase)
	assert.Equal(t, "text", loaded.Sections[0].Content)
}

func TestSaveAfterDeleteReportsNotFound(t *testing.T) {
	store := New()
	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)

	deleted, err := store.Delete(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	assert.ErrorIs(t, store.Save(context.Background(), sess), session.ErrSessionNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := New()
	deleted, err := store.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStoredSnapshotIsIsolated(t *testing.T) {
	store := New()
	sess, err := store.Create(context.Background(), "wi-1")
	require.NoError(t, err)
	sess.Sections = []session.Section{{Name: "Overview"}}
	require.NoError(t, store.Save(context.Background(), sess))

	// Mutating either the saved value or a loaded copy must not leak into
	// the store.
	sess.Sections[0].Content = "dirty"
	loaded, err := store.Load(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Sections[0].Content)

	loaded.Sections[0].Content = "dirty"
	again, err := store.Load(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Sections[0].Content)
}
