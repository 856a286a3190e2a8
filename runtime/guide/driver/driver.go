// Package driver orchestrates guide generation sessions: it runs the
// planning, drafting, and stepping phases against the planner collaborator,
// multiplexes content and control prompts onto the session's event stream,
// suspends on pending prompts, and resumes interrupted sessions from
// persisted state.
//
// The driver is the single writer for a session: a keyed per-session mutex
// serializes every mutation (section appends, step completion, decision
// appends, prompt set/clear) while operations on different sessions never
// block each other. Suspension is "stop producing, keep state": when a prompt
// is registered the active turn returns, and nothing blocks while the
// consumer is away. Every state mutation is saved before the corresponding
// event is emitted, so a crash between save and emit can never leave the
// consumer ahead of recoverable state.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"guidewalk.dev/guidewalk/runtime/guide/planner"
	"guidewalk.dev/guidewalk/runtime/guide/prompt"
	"guidewalk.dev/guidewalk/runtime/guide/session"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
	"guidewalk.dev/guidewalk/runtime/guide/telemetry"
)

type (
	// Driver runs guide generation sessions.
	Driver struct {
		store   session.Store
		planner planner.Planner
		gate    *prompt.Gate
		log     telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
		newID   func() string
		now     func() time.Time

		// locks maps session ID to its mutex. Entries are removed on
		// session deletion.
		locks sync.Map
	}

	// Options configures a Driver. Store and Planner are required; the
	// telemetry fields default to no-ops and the ID/clock fields default to
	// UUIDs and wall-clock time.
	Options struct {
		// Store persists session snapshots.
		Store session.Store
		// Planner is the content generation collaborator.
		Planner planner.Planner
		// Logger receives structured runtime logs.
		Logger telemetry.Logger
		// Metrics receives runtime counters.
		Metrics telemetry.Metrics
		// Tracer receives runtime spans.
		Tracer telemetry.Tracer
		// NewID overrides prompt/result ID generation (tests).
		NewID func() string
		// Now overrides the clock (tests).
		Now func() time.Time
	}

	// Status summarizes a session for getStatus queries. It always explains
	// the session's situation: streaming, pending on one prompt, or terminal.
	Status struct {
		// SessionID identifies the session.
		SessionID string
		// WorkItemID identifies the owning work item.
		WorkItemID string
		// Phase is the persisted phase.
		Phase session.Phase
		// SectionsTotal and SectionsComplete count planned sections.
		SectionsTotal    int
		SectionsComplete int
		// StepsTotal and StepsComplete count materialized steps.
		StepsTotal    int
		StepsComplete int
		// CurrentStep is the lowest-numbered incomplete step, or
		// past-the-end when all steps are complete.
		CurrentStep int
		// PendingPrompt reports whether a prompt is outstanding.
		PendingPrompt bool
		// PendingKind is the outstanding prompt's kind, when one exists.
		PendingKind session.PromptKind
		// ResultID identifies the finished guide when the phase is done.
		ResultID string
		// ErrorMessage is the terminal error of the last turn, when the
		// phase is error.
		ErrorMessage string
	}
)

var (
	// errHalt signals that the turn ended with a terminal event already
	// emitted (done, error, or redirect). It never escapes the driver.
	errHalt = errors.New("turn halted")

	// errDeleted signals that the session was deleted mid-turn. The driver
	// stops producing and surfaces no further events.
	errDeleted = errors.New("session deleted")
)

// New constructs a Driver.
func New(opts Options) (*Driver, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Planner == nil {
		return nil, errors.New("planner is required")
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{
		store:   opts.Store,
		planner: opts.Planner,
		gate:    prompt.NewGate(log, metrics),
		log:     log,
		metrics: metrics,
		tracer:  tracer,
		newID:   newID,
		now:     now,
	}, nil
}

// Start creates a new session for the work item and persists its context.
// It does not generate anything; callers follow with Run on the returned
// session ID, typically from the goroutine serving the consumer's stream.
func (d *Driver) Start(ctx context.Context, item planner.WorkItemContext) (session.Session, error) {
	if item.WorkItemID == "" {
		return session.Session{}, errors.New("work item id is required")
	}
	sess, err := d.store.Create(ctx, item.WorkItemID)
	if err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	sess.WorkItem = session.WorkItem{
		Title:        item.Title,
		Description:  item.Description,
		Dependencies: append([]string(nil), item.Dependencies...),
		Dependents:   append([]string(nil), item.Dependents...),
	}
	if err := d.store.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	d.log.Info(ctx, "session started", "session_id", sess.ID, "work_item_id", item.WorkItemID)
	d.metrics.IncCounter("guide_sessions_started", 1)
	return sess, nil
}

// Run drives the session until it reaches a terminal event or suspends on a
// pending prompt, emitting events to sink as it goes. Running a session that
// already has a pending prompt is a no-op: the consumer answers via Respond
// or reconnects via Resume.
func (d *Driver) Run(ctx context.Context, sessionID string, sink stream.Sink) error {
	unlock := d.lock(sessionID)
	defer unlock()

	sess, err := d.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	em, err := stream.NewEmitter(sink, sess.ID, sess.ActiveSection, d.log)
	if err != nil {
		return err
	}
	if sess.Pending != nil {
		return nil
	}
	return d.finishTurn(d.drive(ctx, &sess, em, nil, 0))
}

// Status implements getStatus. A missing session returns
// session.ErrSessionNotFound, which is a distinct outcome, never an error
// event.
func (d *Driver) Status(ctx context.Context, sessionID string) (Status, error) {
	sess, err := d.store.Load(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		SessionID:     sess.ID,
		WorkItemID:    sess.WorkItemID,
		Phase:         sess.Phase,
		SectionsTotal: len(sess.Sections),
		StepsTotal:    len(sess.Steps),
		CurrentStep:   sess.CurrentStep(),
		ResultID:      sess.ResultID,
		ErrorMessage:  sess.ErrorMessage,
	}
	for _, sec := range sess.Sections {
		if sec.Complete {
			st.SectionsComplete++
		}
	}
	for _, step := range sess.Steps {
		if step.Complete {
			st.StepsComplete++
		}
	}
	if sess.Pending != nil {
		st.PendingPrompt = true
		st.PendingKind = sess.Pending.Kind
	}
	return st, nil
}

// Delete discards the session and everything it owns. It is the only
// cancellation primitive and is idempotent: deleting an absent session
// returns false with no error. An active turn observes the deletion on its
// next save and stops producing silently.
func (d *Driver) Delete(ctx context.Context, sessionID string) (bool, error) {
	unlock := d.lock(sessionID)
	defer unlock()

	deleted, err := d.store.Delete(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if deleted {
		d.locks.Delete(sessionID)
		d.log.Info(ctx, "session deleted", "session_id", sessionID)
		d.metrics.IncCounter("guide_sessions_deleted", 1)
	}
	return deleted, nil
}

// lock acquires the session's mutex and returns its release func.
func (d *Driver) lock(sessionID string) func() {
	v, _ := d.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// drive advances the session until terminal or suspended. res carries the
// resolution of the prompt that unblocked the turn, consumed by the first
// planner call; startedStep names the step whose step_start was already
// emitted this turn, so clarification loops do not repeat it.
func (d *Driver) drive(ctx context.Context, sess *session.Session, em *stream.Emitter, res *planner.PromptResolution, startedStep int) error {
	ctx, span := d.tracer.Start(ctx, "guide.drive")
	defer span.End()

	if sess.Phase == session.PhaseError {
		// A resumed error session retries from the last good checkpoint.
		sess.Phase = retryPhase(sess)
		sess.ErrorMessage = ""
		if err := d.save(ctx, sess); err != nil {
			return err
		}
	}

	for {
		switch sess.Phase {
		case session.PhasePlanning:
			if err := d.plan(ctx, sess, em); err != nil {
				return err
			}
		case session.PhaseDrafting:
			suspended, err := d.draft(ctx, sess, em, &res)
			if err != nil {
				return err
			}
			if suspended {
				return nil
			}
		case session.PhaseStepping:
			suspended, err := d.step(ctx, sess, em, &res, &startedStep)
			if err != nil {
				return err
			}
			if suspended {
				return nil
			}
		case session.PhaseDone:
			// Driving an already-finished session re-announces completion.
			return em.Send(ctx, stream.NewDone(sess.ID, sess.ResultID))
		default:
			return fmt.Errorf("session %s: unexpected phase %q", sess.ID, sess.Phase)
		}
	}
}

// retryPhase derives the phase an error session re-enters from its persisted
// progress.
func retryPhase(sess *session.Session) session.Phase {
	if len(sess.Sections) == 0 {
		return session.PhasePlanning
	}
	if sess.NextSection() != nil {
		return session.PhaseDrafting
	}
	if len(sess.Steps) > 0 && sess.CurrentStep() <= len(sess.Steps) {
		return session.PhaseStepping
	}
	// Drafting finished; draft performs the remaining transition.
	return session.PhaseDrafting
}

// finish moves the session to done and emits the terminal done event.
func (d *Driver) finish(ctx context.Context, sess *session.Session, em *stream.Emitter) error {
	sess.Phase = session.PhaseDone
	sess.ActiveSection = ""
	if sess.ResultID == "" {
		sess.ResultID = d.newID()
	}
	if err := d.save(ctx, sess); err != nil {
		return err
	}
	if err := em.Send(ctx, stream.NewDone(sess.ID, sess.ResultID)); err != nil {
		return err
	}
	d.log.Info(ctx, "session completed", "session_id", sess.ID, "result_id", sess.ResultID)
	d.metrics.IncCounter("guide_sessions_completed", 1)
	return errHalt
}

// fail records a collaborator failure: the session moves to the error phase
// but is retained so the consumer can resume to the last good checkpoint or
// delete explicitly.
func (d *Driver) fail(ctx context.Context, sess *session.Session, em *stream.Emitter, cause error) error {
	d.log.Error(ctx, "generation failed", "session_id", sess.ID, "phase", string(sess.Phase), "err", cause.Error())
	d.metrics.IncCounter("guide_sessions_failed", 1)
	sess.Phase = session.PhaseError
	sess.ErrorMessage = cause.Error()
	if err := d.save(ctx, sess); err != nil {
		return err
	}
	if err := em.Send(ctx, stream.NewError(sess.ID, cause.Error())); err != nil {
		return err
	}
	return errHalt
}

// save persists the session. Deletion observed mid-turn maps to errDeleted
// so callers stop producing; storage failures propagate verbatim and nothing
// is assumed saved.
func (d *Driver) save(ctx context.Context, sess *session.Session) error {
	if err := d.store.Save(ctx, *sess); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			d.log.Info(ctx, "session deleted mid-turn", "session_id", sess.ID)
			return errDeleted
		}
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// finishTurn normalizes internal turn-control sentinels: a halted turn and a
// deleted session are both clean ends of the turn, not caller errors.
func (d *Driver) finishTurn(err error) error {
	if err == nil || errors.Is(err, errHalt) || errors.Is(err, errDeleted) {
		return nil
	}
	return err
}

// workItemContext rebuilds the planner-facing work item context from the
// persisted session.
func workItemContext(sess *session.Session) planner.WorkItemContext {
	return planner.WorkItemContext{
		WorkItemID:   sess.WorkItemID,
		Title:        sess.WorkItem.Title,
		Description:  sess.WorkItem.Description,
		Dependencies: append([]string(nil), sess.WorkItem.Dependencies...),
		Dependents:   append([]string(nil), sess.WorkItem.Dependents...),
	}
}

// take consumes the pending resolution, returning nil on subsequent calls.
func take(res **planner.PromptResolution) *planner.PromptResolution {
	out := *res
	*res = nil
	return out
}
