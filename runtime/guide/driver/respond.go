package driver

import (
	"context"
	"fmt"

	"guidewalk.dev/guidewalk/runtime/guide/command"
	"guidewalk.dev/guidewalk/runtime/guide/planner"
	"guidewalk.dev/guidewalk/runtime/guide/prompt"
	"guidewalk.dev/guidewalk/runtime/guide/session"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

// Respond applies a consumer command to the session's pending prompt and
// continues generation on sink. Rejections come back as *prompt.Rejection
// with the session untouched and nothing emitted; the pending prompt stays
// in force. On acceptance the cleared prompt (and any recorded decision) is
// persisted before generation continues.
func (d *Driver) Respond(ctx context.Context, sessionID string, cmd command.Command, sink stream.Sink) error {
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

	res, err := d.gate.Respond(ctx, &sess, cmd)
	if err != nil {
		return err
	}
	answered := res.Prompt

	// Stepping-phase choices are durable decisions; drafting-phase choices
	// shape content but are not recorded.
	if answered.Kind == session.PromptChoice && answered.StepNumber > 0 && !res.Skipped {
		desc := res.SelectedLabel
		if res.Note != "" {
			desc = fmt.Sprintf("%s (%s)", desc, res.Note)
		}
		sess.Decisions = append(sess.Decisions, session.Decision{
			StepNumber:  answered.StepNumber,
			Description: desc,
			DecidedAt:   d.now().UTC(),
		})
	}

	// Persist the cleared prompt (and decision) before generating anything:
	// a crash from here on re-runs generation, never re-opens the prompt.
	if err := d.save(ctx, &sess); err != nil {
		return d.finishTurn(err)
	}

	if answered.StepNumber > 0 {
		return d.finishTurn(d.respondStep(ctx, &sess, em, answered, res))
	}
	return d.finishTurn(d.drive(ctx, &sess, em, resolution(res), 0))
}

// respondStep continues a stepping-phase session after a prompt resolution.
func (d *Driver) respondStep(ctx context.Context, sess *session.Session, em *stream.Emitter, answered session.PendingPrompt, res prompt.Resolution) error {
	cur := answered.StepNumber

	switch answered.Kind {
	case session.PromptStepConfirmation:
		switch {
		case res.Skipped, res.Value == planner.StepCompleted:
			// Skipping a confirmation advances the step like a completed
			// answer, without a recorded decision.
			if err := d.completeStep(ctx, sess, em, cur); err != nil {
				return err
			}
			return d.drive(ctx, sess, em, nil, 0)
		case res.Value == planner.StepNeedsClarification:
			st := sess.Step(cur)
			if st == nil {
				return fmt.Errorf("session %s: no step %d", sess.ID, cur)
			}
			p := session.PendingPrompt{
				Kind:        session.PromptInput,
				ID:          d.newID(),
				Question:    fmt.Sprintf("What needs clarification about %q?", st.Title),
				StepNumber:  cur,
				SkipAllowed: true,
				Input:       &session.InputDetails{},
			}
			return d.suspend(ctx, sess, em, p)
		default:
			// Any other answer is treated as an inline clarification and the
			// confirmation is re-issued with it.
			return d.drive(ctx, sess, em, resolution(res), cur)
		}
	case session.PromptInput, session.PromptChoice:
		// Clarification answers and approach choices feed the next
		// ConfirmStep call for the same step.
		return d.drive(ctx, sess, em, resolution(res), cur)
	default:
		return fmt.Errorf("session %s: unexpected prompt kind %q", sess.ID, answered.Kind)
	}
}

// resolution converts an accepted gate resolution to its planner form.
func resolution(res prompt.Resolution) *planner.PromptResolution {
	return &planner.PromptResolution{
		PromptID: res.Prompt.ID,
		Skipped:  res.Skipped,
		Selected: res.Selected,
		Label:    res.SelectedLabel,
		Note:     res.Note,
		Value:    res.Value,
	}
}
