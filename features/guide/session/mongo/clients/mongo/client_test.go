package mongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"guidewalk.dev/guidewalk/runtime/guide/session"
)

func TestEnsureIndexes(t *testing.T) {
	sessions := newFakeCollection()
	err := ensureIndexes(context.Background(), sessions)
	require.NoError(t, err)
	require.Equal(t, 2, sessions.indexCreated)
}

func TestInsertLoadRoundTrip(t *testing.T) {
	client := mustNewTestClient()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sess := session.Session{
		ID:         "sess-1",
		WorkItemID: "wi-1",
		Phase:      session.PhaseDrafting,
		WorkItem: session.WorkItem{
			Title:        "Add rate limiting",
			Description:  "Protect the public API",
			Dependencies: []string{"wi-0"},
			Dependents:   []string{"wi-2"},
		},
		Sections: []session.Section{
			{Name: "Overview", Content: "Done text", Complete: true},
			{Name: "Approach", Content: "Partial"},
		},
		ActiveSection: "Approach",
		NeedsSteps:    true,
		PlannedSteps:  []string{"Install", "Configure"},
		Decisions: []session.Decision{
			{StepNumber: 1, Description: "Per project", DecidedAt: now},
		},
		Pending: &session.PendingPrompt{
			Kind:        session.PromptChoice,
			ID:          "p1",
			Question:    "Which limiter?",
			Section:     "Approach",
			SkipAllowed: true,
			Choice: &session.ChoiceDetails{
				Options: []session.ChoiceOption{
					{ID: "a", Label: "A", Description: "token bucket"},
				},
				AllowCustom:  true,
				ResearchHint: "compare burst behavior",
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, client.InsertSession(context.Background(), sess))

	loaded, err := client.LoadSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, sess, loaded)
}

func TestReplaceUpdatesSnapshot(t *testing.T) {
	client := mustNewTestClient()
	sess := session.Session{ID: "sess-1", WorkItemID: "wi-1", Phase: session.PhasePlanning}
	require.NoError(t, client.InsertSession(context.Background(), sess))

	sess.Phase = session.PhaseDone
	sess.ResultID = "guide-1"
	require.NoError(t, client.ReplaceSession(context.Background(), sess))

	loaded, err := client.LoadSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, session.PhaseDone, loaded.Phase)
	require.Equal(t, "guide-1", loaded.ResultID)
}

func TestReplaceMissingReportsNotFound(t *testing.T) {
	client := mustNewTestClient()
	err := client.ReplaceSession(context.Background(), session.Session{ID: "missing"})
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestDeleteReportsExistence(t *testing.T) {
	client := mustNewTestClient()
	sess := session.Session{ID: "sess-1", WorkItemID: "wi-1"}
	require.NoError(t, client.InsertSession(context.Background(), sess))

	deleted, err := client.DeleteSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = client.DeleteSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	client := mustNewTestClient()
	_, err := client.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLoadRequiresID(t *testing.T) {
	client := mustNewTestClient()
	_, err := client.LoadSession(context.Background(), "")
	require.EqualError(t, err, "session id is required")
}

func mustNewTestClient() *client {
	cl, err := newClientWithCollection(nil, newFakeCollection(), time.Second)
	if err != nil {
		panic(err)
	}
	return cl
}

type fakeCollection struct {
	mu           sync.Mutex
	indexCreated int
	docs         map[string]sessionDocument
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]sessionDocument)}
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	doc, ok := c.docs[sessionID]
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	copyDoc := doc
	return fakeSingleResult{doc: &copyDoc}
}

func (c *fakeCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	typed, ok := doc.(sessionDocument)
	if !ok {
		return nil, errors.New("unsupported document")
	}
	if _, exists := c.docs[typed.SessionID]; exists {
		return nil, errors.New("duplicate key")
	}
	c.docs[typed.SessionID] = typed
	return &mongodriver.InsertOneResult{}, nil
}

func (c *fakeCollection) ReplaceOne(ctx context.Context, filter any, replacement any,
	opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	typed, ok := replacement.(sessionDocument)
	if !ok {
		return nil, errors.New("unsupported document")
	}
	if _, exists := c.docs[sessionID]; !exists {
		return &mongodriver.UpdateResult{MatchedCount: 0}, nil
	}
	c.docs[sessionID] = typed
	return &mongodriver.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *fakeCollection) DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	if _, exists := c.docs[sessionID]; !exists {
		return &mongodriver.DeleteResult{DeletedCount: 0}, nil
	}
	delete(c.docs, sessionID)
	return &mongodriver.DeleteResult{DeletedCount: 1}, nil
}

func (c *fakeCollection) Indexes() indexView {
	return fakeIndexView{parent: &c.indexCreated}
}

type fakeIndexView struct {
	parent *int
}

func (v fakeIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	if len(model.Keys.(bson.D)) == 0 {
		return "", errors.New("missing keys")
	}
	*v.parent++
	return "session_id_idx", nil
}

type fakeSingleResult struct {
	doc *sessionDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	typed, ok := val.(*sessionDocument)
	if !ok {
		return errors.New("unsupported target")
	}
	*typed = *r.doc
	return nil
}
