// Package mongo hosts the MongoDB client used by the guide session store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"goa.design/clue/health"

	"guidewalk.dev/guidewalk/runtime/guide/session"
)

const (
	defaultSessionsCollection = "guide_sessions"
	defaultOpTimeout          = 5 * time.Second
	sessionClientName         = "guide-session-mongo"
)

// Client exposes Mongo-backed operations for guide session snapshots.
type Client interface {
	health.Pinger

	// InsertSession stores a new session snapshot.
	InsertSession(ctx context.Context, sess session.Session) error
	// LoadSession retrieves a snapshot by session ID.
	LoadSession(ctx context.Context, sessionID string) (session.Session, error)
	// ReplaceSession overwrites an existing snapshot in full. It returns
	// session.ErrSessionNotFound when the session has been deleted.
	ReplaceSession(ctx context.Context, sess session.Session) error
	// DeleteSession removes a snapshot. It reports whether one existed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// Options configures the Mongo guide session client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo    *mongodriver.Client
	sessions collection
	timeout  time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	name := opts.Collection
	if name == "" {
		name = defaultSessionsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(name)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, coll, timeout)
}

func (c *client) Name() string {
	return sessionClientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) InsertSession(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	if sess.WorkItemID == "" {
		return errors.New("work item id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.sessions.InsertOne(ctx, fromSession(sess))
	return err
}

func (c *client) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	if sessionID == "" {
		return session.Session{}, errors.New("session id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"session_id": sessionID}
	var doc sessionDocument
	if err := c.sessions.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return session.Session{}, session.ErrSessionNotFound
		}
		return session.Session{}, err
	}
	return doc.toSession(), nil
}

func (c *client) ReplaceSession(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"session_id": sess.ID}
	res, err := c.sessions.ReplaceOne(ctx, filter, fromSession(sess))
	if err != nil {
		return err
	}
	// Replace never upserts: a snapshot for a deleted session must not
	// resurrect it.
	if res.MatchedCount == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (c *client) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, errors.New("session id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"session_id": sessionID}
	res, err := c.sessions.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type (
	sessionDocument struct {
		SessionID     string             `bson:"session_id"`
		WorkItemID    string             `bson:"work_item_id"`
		Phase         string             `bson:"phase"`
		WorkItem      workItemDocument   `bson:"work_item"`
		Sections      []sectionDocument  `bson:"sections,omitempty"`
		ActiveSection string             `bson:"active_section,omitempty"`
		NeedsSteps    bool               `bson:"needs_steps"`
		PlannedSteps  []string           `bson:"planned_steps,omitempty"`
		Steps         []stepDocument     `bson:"steps,omitempty"`
		Decisions     []decisionDocument `bson:"decisions,omitempty"`
		Pending       *promptDocument    `bson:"pending,omitempty"`
		ResultID      string             `bson:"result_id,omitempty"`
		ErrorMessage  string             `bson:"error_message,omitempty"`
		CreatedAt     time.Time          `bson:"created_at"`
		UpdatedAt     time.Time          `bson:"updated_at"`
	}

	workItemDocument struct {
		Title        string   `bson:"title,omitempty"`
		Description  string   `bson:"description,omitempty"`
		Dependencies []string `bson:"dependencies,omitempty"`
		Dependents   []string `bson:"dependents,omitempty"`
	}

	sectionDocument struct {
		Name     string `bson:"name"`
		Content  string `bson:"content,omitempty"`
		Complete bool   `bson:"complete"`
	}

	stepDocument struct {
		Number   int    `bson:"number"`
		Title    string `bson:"title"`
		Complete bool   `bson:"complete"`
	}

	decisionDocument struct {
		StepNumber  int       `bson:"step_number"`
		Description string    `bson:"description"`
		DecidedAt   time.Time `bson:"decided_at"`
	}

	promptDocument struct {
		Kind         string           `bson:"kind"`
		ID           string           `bson:"id"`
		Question     string           `bson:"question"`
		StepNumber   int              `bson:"step_number,omitempty"`
		Section      string           `bson:"section,omitempty"`
		SkipAllowed  bool             `bson:"skip_allowed"`
		Choice       *choiceDocument  `bson:"choice,omitempty"`
		Input        *inputDocument   `bson:"input,omitempty"`
		Confirmation *confirmDocument `bson:"confirmation,omitempty"`
	}

	choiceDocument struct {
		Options      []choiceOptionDocument `bson:"options"`
		AllowCustom  bool                   `bson:"allow_custom"`
		ResearchHint string                 `bson:"research_hint,omitempty"`
	}

	choiceOptionDocument struct {
		ID          string `bson:"id"`
		Label       string `bson:"label"`
		Description string `bson:"description,omitempty"`
	}

	inputDocument struct {
		Placeholder string   `bson:"placeholder,omitempty"`
		Options     []string `bson:"options,omitempty"`
	}

	confirmDocument struct {
		Options []string `bson:"options,omitempty"`
	}
)

func fromSession(sess session.Session) sessionDocument {
	doc := sessionDocument{
		SessionID:  sess.ID,
		WorkItemID: sess.WorkItemID,
		Phase:      string(sess.Phase),
		WorkItem: workItemDocument{
			Title:        sess.WorkItem.Title,
			Description:  sess.WorkItem.Description,
			Dependencies: append([]string(nil), sess.WorkItem.Dependencies...),
			Dependents:   append([]string(nil), sess.WorkItem.Dependents...),
		},
		ActiveSection: sess.ActiveSection,
		NeedsSteps:    sess.NeedsSteps,
		PlannedSteps:  append([]string(nil), sess.PlannedSteps...),
		ResultID:      sess.ResultID,
		ErrorMessage:  sess.ErrorMessage,
		CreatedAt:     sess.CreatedAt.UTC(),
		UpdatedAt:     sess.UpdatedAt.UTC(),
	}
	for _, sec := range sess.Sections {
		doc.Sections = append(doc.Sections, sectionDocument{Name: sec.Name, Content: sec.Content, Complete: sec.Complete})
	}
	for _, st := range sess.Steps {
		doc.Steps = append(doc.Steps, stepDocument{Number: st.Number, Title: st.Title, Complete: st.Complete})
	}
	for _, dec := range sess.Decisions {
		doc.Decisions = append(doc.Decisions, decisionDocument{
			StepNumber:  dec.StepNumber,
			Description: dec.Description,
			DecidedAt:   dec.DecidedAt.UTC(),
		})
	}
	doc.Pending = fromPrompt(sess.Pending)
	return doc
}

func fromPrompt(p *session.PendingPrompt) *promptDocument {
	if p == nil {
		return nil
	}
	doc := &promptDocument{
		Kind:        string(p.Kind),
		ID:          p.ID,
		Question:    p.Question,
		StepNumber:  p.StepNumber,
		Section:     p.Section,
		SkipAllowed: p.SkipAllowed,
	}
	if p.Choice != nil {
		choice := &choiceDocument{
			AllowCustom:  p.Choice.AllowCustom,
			ResearchHint: p.Choice.ResearchHint,
		}
		for _, opt := range p.Choice.Options {
			choice.Options = append(choice.Options, choiceOptionDocument{ID: opt.ID, Label: opt.Label, Description: opt.Description})
		}
		doc.Choice = choice
	}
	if p.Input != nil {
		doc.Input = &inputDocument{
			Placeholder: p.Input.Placeholder,
			Options:     append([]string(nil), p.Input.Options...),
		}
	}
	if p.Confirmation != nil {
		doc.Confirmation = &confirmDocument{Options: append([]string(nil), p.Confirmation.Options...)}
	}
	return doc
}

func (doc sessionDocument) toSession() session.Session {
	sess := session.Session{
		ID:         doc.SessionID,
		WorkItemID: doc.WorkItemID,
		Phase:      session.Phase(doc.Phase),
		WorkItem: session.WorkItem{
			Title:        doc.WorkItem.Title,
			Description:  doc.WorkItem.Description,
			Dependencies: append([]string(nil), doc.WorkItem.Dependencies...),
			Dependents:   append([]string(nil), doc.WorkItem.Dependents...),
		},
		ActiveSection: doc.ActiveSection,
		NeedsSteps:    doc.NeedsSteps,
		PlannedSteps:  append([]string(nil), doc.PlannedSteps...),
		ResultID:      doc.ResultID,
		ErrorMessage:  doc.ErrorMessage,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
	for _, sec := range doc.Sections {
		sess.Sections = append(sess.Sections, session.Section{Name: sec.Name, Content: sec.Content, Complete: sec.Complete})
	}
	for _, st := range doc.Steps {
		sess.Steps = append(sess.Steps, session.Step{Number: st.Number, Title: st.Title, Complete: st.Complete})
	}
	for _, dec := range doc.Decisions {
		sess.Decisions = append(sess.Decisions, session.Decision{
			StepNumber:  dec.StepNumber,
			Description: dec.Description,
			DecidedAt:   dec.DecidedAt.UTC(),
		})
	}
	sess.Pending = doc.toPrompt()
	return sess
}

func (doc sessionDocument) toPrompt() *session.PendingPrompt {
	p := doc.Pending
	if p == nil {
		return nil
	}
	out := &session.PendingPrompt{
		Kind:        session.PromptKind(p.Kind),
		ID:          p.ID,
		Question:    p.Question,
		StepNumber:  p.StepNumber,
		Section:     p.Section,
		SkipAllowed: p.SkipAllowed,
	}
	if p.Choice != nil {
		choice := &session.ChoiceDetails{
			AllowCustom:  p.Choice.AllowCustom,
			ResearchHint: p.Choice.ResearchHint,
		}
		for _, opt := range p.Choice.Options {
			choice.Options = append(choice.Options, session.ChoiceOption{ID: opt.ID, Label: opt.Label, Description: opt.Description})
		}
		out.Choice = choice
	}
	if p.Input != nil {
		out.Input = &session.InputDetails{
			Placeholder: p.Input.Placeholder,
			Options:     append([]string(nil), p.Input.Options...),
		}
	}
	if p.Confirmation != nil {
		out.Confirmation = &session.ConfirmationDetails{Options: append([]string(nil), p.Confirmation.Options...)}
	}
	return out
}

func ensureIndexes(ctx context.Context, sessionsColl collection) error {
	sessionIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := sessionsColl.Indexes().CreateOne(ctx, sessionIndex); err != nil {
		return err
	}
	workItemIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "work_item_id", Value: 1}},
	}
	if _, err := sessionsColl.Indexes().CreateOne(ctx, workItemIndex); err != nil {
		return err
	}
	return nil
}

func newClientWithCollection(mongoClient *mongodriver.Client, sessionsColl collection, timeout time.Duration) (*client, error) {
	if sessionsColl == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{
		mongo:    mongoClient,
		sessions: sessionsColl,
		timeout:  timeout,
	}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter any, replacement any,
		opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoCollection) ReplaceOne(ctx context.Context, filter any, replacement any,
	opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
