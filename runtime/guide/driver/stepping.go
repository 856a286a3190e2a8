package driver

import (
	"context"
	"fmt"

	"guidewalk.dev/guidewalk/runtime/guide/planner"
	"guidewalk.dev/guidewalk/runtime/guide/session"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

// step walks the materialized steps in order. Each step is announced once
// per turn, then ConfirmStep decides whether the consumer confirms
// completion, picks between approaches, or is redirected to another surface.
// clar carries a clarification answer for the current step, consumed by the
// first ConfirmStep call.
func (d *Driver) step(ctx context.Context, sess *session.Session, em *stream.Emitter, clar **planner.PromptResolution, startedStep *int) (suspended bool, err error) {
	for {
		cur := sess.CurrentStep()
		if cur > len(sess.Steps) {
			return false, d.finish(ctx, sess, em)
		}
		st := sess.Step(cur)

		if *startedStep != cur {
			if err := em.Send(ctx, stream.NewStepStart(sess.ID, stream.StepStartPayload{
				StepNumber: cur,
				StepTitle:  st.Title,
				TotalSteps: len(sess.Steps),
			})); err != nil {
				return false, err
			}
			*startedStep = cur
		}

		sp, err := d.planner.ConfirmStep(ctx, planner.StepRequest{
			SessionID:     sess.ID,
			WorkItem:      workItemContext(sess),
			StepNumber:    cur,
			StepTitle:     st.Title,
			TotalSteps:    len(sess.Steps),
			Clarification: take(clar),
		})
		if err != nil {
			return false, d.fail(ctx, sess, em, fmt.Errorf("confirm step %d: %w", cur, err))
		}

		switch sp.Kind {
		case planner.StepPromptConfirmation:
			if sp.Confirmation == nil {
				return false, d.fail(ctx, sess, em, fmt.Errorf("confirm step %d: confirmation prompt without spec", cur))
			}
			p := session.PendingPrompt{
				Kind:        session.PromptStepConfirmation,
				ID:          d.newID(),
				Question:    sp.Confirmation.Question,
				StepNumber:  cur,
				SkipAllowed: sp.Confirmation.SkipAllowed,
				Confirmation: &session.ConfirmationDetails{
					Options: append([]string(nil), sp.Confirmation.Options...),
				},
			}
			return true, d.suspend(ctx, sess, em, p)
		case planner.StepPromptChoice:
			if sp.Choice == nil {
				return false, d.fail(ctx, sess, em, fmt.Errorf("confirm step %d: choice prompt without spec", cur))
			}
			p := pendingChoice(d.newID(), sp.Choice, "", cur)
			return true, d.suspend(ctx, sess, em, p)
		case planner.StepPromptRedirect:
			if sp.Redirect == nil {
				return false, d.fail(ctx, sess, em, fmt.Errorf("confirm step %d: redirect prompt without spec", cur))
			}
			// A redirect ends the turn without a pending prompt: the step
			// continues on the other surface and the consumer resumes when
			// ready.
			if err := em.Send(ctx, stream.NewRedirectToChat(sess.ID, sp.Redirect.Message, cur)); err != nil {
				return false, err
			}
			d.log.Info(ctx, "step redirected", "session_id", sess.ID, "step", cur)
			return true, nil
		default:
			return false, d.fail(ctx, sess, em, fmt.Errorf("confirm step %d: unknown prompt kind %q", cur, sp.Kind))
		}
	}
}

// completeStep marks the step done, persists, and emits the completion pair.
func (d *Driver) completeStep(ctx context.Context, sess *session.Session, em *stream.Emitter, stepNumber int) error {
	st := sess.Step(stepNumber)
	if st == nil {
		return fmt.Errorf("session %s: no step %d", sess.ID, stepNumber)
	}
	st.Complete = true
	if err := d.save(ctx, sess); err != nil {
		return err
	}
	if err := em.Send(ctx, stream.NewStepComplete(sess.ID, stepNumber)); err != nil {
		return err
	}
	d.metrics.IncCounter("guide_steps_completed", 1)
	return em.Send(ctx, stream.NewProgressSaved(sess.ID, string(sess.Phase)))
}
