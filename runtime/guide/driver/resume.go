package driver

import (
	"context"

	"guidewalk.dev/guidewalk/runtime/guide/session"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

// Resume reconnects a consumer to an existing session. It replays persisted
// state as restored events, strictly pure reads with no generation side
// effects, then hands over to live continuation: the pending prompt is
// re-emitted unchanged if one exists, otherwise generation picks up from the
// last checkpoint. Resuming an error-phase session is the retry path.
func (d *Driver) Resume(ctx context.Context, sessionID string, sink stream.Sink) error {
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

	if sess.Phase == session.PhaseDone {
		// Nothing to replay: completion is the only fact that matters.
		return em.Send(ctx, stream.NewDone(sess.ID, sess.ResultID))
	}

	d.log.Info(ctx, "session resumed", "session_id", sess.ID, "phase", string(sess.Phase))
	d.metrics.IncCounter("guide_sessions_resumed", 1)

	if err := em.Send(ctx, stream.NewSessionRestored(sess.ID, string(sess.Phase))); err != nil {
		return err
	}
	for _, sec := range sess.Sections {
		if sec.Content == "" && !sec.Complete {
			continue
		}
		if err := em.Send(ctx, stream.NewRestoredContent(sess.ID, sec.Name, sec.Content)); err != nil {
			return err
		}
	}
	if err := em.Send(ctx, stream.NewRestoredSteps(sess.ID, restoredSteps(&sess))); err != nil {
		return err
	}
	if err := em.Send(ctx, stream.NewRestoredDecisions(sess.ID, restoredDecisions(&sess))); err != nil {
		return err
	}

	if sess.Pending != nil {
		// Same ID, same fields: responses prepared against the original
		// emission remain valid.
		return em.Send(ctx, promptEvent(sess.ID, sess.Pending))
	}
	return d.finishTurn(d.drive(ctx, &sess, em, nil, 0))
}

// restoredSteps is emitted even when empty so consumers need no presence
// heuristics.
func restoredSteps(sess *session.Session) stream.RestoredStepsPayload {
	out := stream.RestoredStepsPayload{
		Steps:       make([]stream.RestoredStepPayload, len(sess.Steps)),
		CurrentStep: sess.CurrentStep(),
	}
	for i, st := range sess.Steps {
		out.Steps[i] = stream.RestoredStepPayload{
			StepNumber: st.Number,
			Title:      st.Title,
			Complete:   st.Complete,
		}
	}
	return out
}

func restoredDecisions(sess *session.Session) stream.RestoredDecisionsPayload {
	out := stream.RestoredDecisionsPayload{
		Decisions: make([]stream.RestoredDecisionPayload, len(sess.Decisions)),
	}
	for i, dec := range sess.Decisions {
		out.Decisions[i] = stream.RestoredDecisionPayload{
			StepNumber:  dec.StepNumber,
			Description: dec.Description,
		}
	}
	return out
}
