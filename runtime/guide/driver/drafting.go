package driver

import (
	"context"
	"fmt"

	"guidewalk.dev/guidewalk/runtime/guide/planner"
	"guidewalk.dev/guidewalk/runtime/guide/session"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

// plan runs the planning phase: one Plan call, then the transition to
// drafting. The context event is emitted only after the plan is persisted.
func (d *Driver) plan(ctx context.Context, sess *session.Session, em *stream.Emitter) error {
	ctx, span := d.tracer.Start(ctx, "guide.plan")
	defer span.End()

	plan, err := d.planner.Plan(ctx, workItemContext(sess))
	if err != nil {
		return d.fail(ctx, sess, em, fmt.Errorf("plan work item %s: %w", sess.WorkItemID, err))
	}
	if len(plan.Sections) == 0 {
		return d.fail(ctx, sess, em, fmt.Errorf("plan work item %s: no sections", sess.WorkItemID))
	}

	sess.Sections = make([]session.Section, len(plan.Sections))
	for i, name := range plan.Sections {
		sess.Sections[i] = session.Section{Name: name}
	}
	sess.NeedsSteps = plan.NeedsSteps
	sess.PlannedSteps = append([]string(nil), plan.Steps...)
	sess.Phase = session.PhaseDrafting
	if err := d.save(ctx, sess); err != nil {
		return err
	}

	if err := em.Send(ctx, stream.NewContext(sess.ID, stream.ContextPayload{
		Description:  plan.Description,
		Dependencies: append([]string{}, sess.WorkItem.Dependencies...),
		Dependents:   append([]string{}, sess.WorkItem.Dependents...),
	})); err != nil {
		return err
	}
	d.log.Debug(ctx, "plan ready", "session_id", sess.ID,
		"sections", len(plan.Sections), "needs_steps", plan.NeedsSteps)
	return em.Send(ctx, stream.NewProgressSaved(sess.ID, string(sess.Phase)))
}

// draft generates sections in plan order until all are complete or a prompt
// suspends the turn. Each chunk is appended to the persisted section content
// before it is streamed, so crash recovery never loses text the consumer saw.
func (d *Driver) draft(ctx context.Context, sess *session.Session, em *stream.Emitter, res **planner.PromptResolution) (suspended bool, err error) {
	for {
		sec := sess.NextSection()
		if sec == nil {
			return false, d.leaveDrafting(ctx, sess, em)
		}

		if sess.ActiveSection != sec.Name {
			sess.ActiveSection = sec.Name
			if err := d.save(ctx, sess); err != nil {
				return false, err
			}
			if err := em.SectionStart(ctx, sec.Name); err != nil {
				return false, err
			}
		}

		out, err := d.planner.GenerateSectionChunk(ctx, planner.SectionRequest{
			SessionID:  sess.ID,
			WorkItem:   workItemContext(sess),
			Section:    sec.Name,
			Prior:      sec.Content,
			Resolution: take(res),
		})
		if err != nil {
			return false, d.fail(ctx, sess, em, fmt.Errorf("generate section %q: %w", sec.Name, err))
		}

		switch out.Kind {
		case planner.OutcomeChunk:
			sec.Content += out.Chunk
			if err := d.save(ctx, sess); err != nil {
				return false, err
			}
			if err := em.Chunk(ctx, sec.Name, out.Chunk); err != nil {
				return false, err
			}
		case planner.OutcomeComplete:
			sec.Complete = true
			sess.ActiveSection = ""
			if err := d.save(ctx, sess); err != nil {
				return false, err
			}
			if err := em.SectionComplete(ctx, sec.Name); err != nil {
				return false, err
			}
		case planner.OutcomeChoice:
			if out.Choice == nil {
				return false, d.fail(ctx, sess, em, fmt.Errorf("generate section %q: choice outcome without spec", sec.Name))
			}
			p := pendingChoice(d.newID(), out.Choice, sec.Name, 0)
			return true, d.suspend(ctx, sess, em, p)
		case planner.OutcomeInput:
			if out.Input == nil {
				return false, d.fail(ctx, sess, em, fmt.Errorf("generate section %q: input outcome without spec", sec.Name))
			}
			p := pendingInput(d.newID(), out.Input, sec.Name, 0)
			return true, d.suspend(ctx, sess, em, p)
		default:
			return false, d.fail(ctx, sess, em, fmt.Errorf("generate section %q: unknown outcome %q", sec.Name, out.Kind))
		}
	}
}

// leaveDrafting performs the transition out of the drafting phase: into
// stepping when the plan calls for steps, otherwise straight to done.
func (d *Driver) leaveDrafting(ctx context.Context, sess *session.Session, em *stream.Emitter) error {
	sess.ActiveSection = ""
	if sess.NeedsSteps && len(sess.PlannedSteps) > 0 {
		if len(sess.Steps) == 0 {
			sess.Steps = make([]session.Step, len(sess.PlannedSteps))
			for i, title := range sess.PlannedSteps {
				sess.Steps[i] = session.Step{Number: i + 1, Title: title}
			}
		}
		sess.Phase = session.PhaseStepping
		if err := d.save(ctx, sess); err != nil {
			return err
		}
		return em.Send(ctx, stream.NewProgressSaved(sess.ID, string(sess.Phase)))
	}
	return d.finish(ctx, sess, em)
}

// suspend registers the prompt, persists it, and only then emits the prompt
// event. The turn ends here; the consumer's Respond call continues it.
func (d *Driver) suspend(ctx context.Context, sess *session.Session, em *stream.Emitter, p session.PendingPrompt) error {
	if err := d.gate.Register(ctx, sess, p); err != nil {
		return fmt.Errorf("register prompt: %w", err)
	}
	if err := d.save(ctx, sess); err != nil {
		return err
	}
	if err := em.Send(ctx, promptEvent(sess.ID, sess.Pending)); err != nil {
		return err
	}
	d.metrics.IncCounter("guide_prompts_issued", 1, "kind", string(p.Kind))
	return nil
}

// pendingChoice builds the persisted form of a planner choice prompt.
func pendingChoice(id string, spec *planner.ChoiceSpec, sectionName string, stepNumber int) session.PendingPrompt {
	opts := make([]session.ChoiceOption, len(spec.Options))
	for i, o := range spec.Options {
		opts[i] = session.ChoiceOption{ID: o.ID, Label: o.Label, Description: o.Description}
	}
	return session.PendingPrompt{
		Kind:        session.PromptChoice,
		ID:          id,
		Question:    spec.Question,
		Section:     sectionName,
		StepNumber:  stepNumber,
		SkipAllowed: spec.SkipAllowed,
		Choice: &session.ChoiceDetails{
			Options:      opts,
			AllowCustom:  spec.AllowCustom,
			ResearchHint: spec.ResearchHint,
		},
	}
}

// pendingInput builds the persisted form of a planner input prompt.
func pendingInput(id string, spec *planner.InputSpec, sectionName string, stepNumber int) session.PendingPrompt {
	return session.PendingPrompt{
		Kind:        session.PromptInput,
		ID:          id,
		Question:    spec.Question,
		Section:     sectionName,
		StepNumber:  stepNumber,
		SkipAllowed: spec.SkipAllowed,
		Input: &session.InputDetails{
			Placeholder: spec.Placeholder,
			Options:     append([]string(nil), spec.Options...),
		},
	}
}

// promptEvent maps a persisted pending prompt to its wire event. Resume uses
// the same mapping, so a re-emitted prompt is byte-for-byte identical to the
// original emission.
func promptEvent(sessionID string, p *session.PendingPrompt) stream.Event {
	switch p.Kind {
	case session.PromptChoice:
		opts := make([]stream.ChoiceOptionPayload, len(p.Choice.Options))
		for i, o := range p.Choice.Options {
			opts[i] = stream.ChoiceOptionPayload{ID: o.ID, Label: o.Label, Description: o.Description}
		}
		return stream.NewChoiceRequired(sessionID, stream.ChoiceRequiredPayload{
			ChoiceID:     p.ID,
			Question:     p.Question,
			Options:      opts,
			AllowCustom:  p.Choice.AllowCustom,
			SkipAllowed:  p.SkipAllowed,
			ResearchHint: p.Choice.ResearchHint,
		})
	case session.PromptInput:
		return stream.NewInputRequired(sessionID, stream.InputRequiredPayload{
			PromptID:    p.ID,
			Question:    p.Question,
			Placeholder: p.Input.Placeholder,
			Options:     append([]string(nil), p.Input.Options...),
		})
	case session.PromptStepConfirmation:
		return stream.NewStepConfirmationRequired(sessionID, stream.StepConfirmationRequiredPayload{
			PromptID: p.ID,
			Question: p.Question,
			Options:  append([]string(nil), p.Confirmation.Options...),
		})
	}
	return stream.NewError(sessionID, fmt.Sprintf("unknown prompt kind %q", p.Kind))
}
