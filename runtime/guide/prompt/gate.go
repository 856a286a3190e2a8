// Package prompt enforces the single-pending-prompt invariant and validates
// consumer responses against the currently pending prompt.
//
// The gate operates on in-memory session snapshots: Register sets the pending
// prompt and Respond clears it on acceptance, but neither persists anything.
// The driver owns persistence and saves the cleared prompt atomically with any
// resulting decision before generation resumes, which closes the double-submit
// race (a second response arriving after the save finds no pending prompt and
// is rejected).
//
// Rejections are protocol violations in the sense of the error taxonomy: they
// are returned to the submitting consumer, leave session state untouched, and
// are never surfaced as session-level error events.
package prompt

import (
	"context"
	"errors"
	"fmt"

	"guidewalk.dev/guidewalk/runtime/guide/command"
	"guidewalk.dev/guidewalk/runtime/guide/session"
	"guidewalk.dev/guidewalk/runtime/guide/telemetry"
)

type (
	// Gate validates prompt registrations and consumer responses.
	Gate struct {
		log     telemetry.Logger
		metrics telemetry.Metrics
	}

	// Resolution describes an accepted response to a pending prompt.
	Resolution struct {
		// Prompt is the prompt that was resolved.
		Prompt session.PendingPrompt
		// Skipped reports that the prompt was resolved by a skip command.
		Skipped bool
		// Selected is the accepted choice selection (option ID or free text).
		Selected string
		// SelectedLabel is the display label of the accepted option, or the
		// free text itself for custom selections.
		SelectedLabel string
		// Custom reports that Selected is free text outside the offered options.
		Custom bool
		// Note is the optional consumer note on a choice.
		Note string
		// Value is the accepted input text.
		Value string
	}

	// Rejection explains why a response was not accepted. It implements
	// error so gate callers can propagate it, but it is a consumer-facing
	// outcome, not a session failure.
	Rejection struct {
		// Reason is the machine-readable rejection code.
		Reason Reason
		// Detail elaborates for diagnostics.
		Detail string
	}

	// Reason enumerates rejection codes.
	Reason string
)

const (
	// ReasonNoPrompt indicates no prompt is pending.
	ReasonNoPrompt Reason = "no_pending_prompt"
	// ReasonTypeMismatch indicates the command type cannot answer the
	// pending prompt's type.
	ReasonTypeMismatch Reason = "type_mismatch"
	// ReasonCorrelationMismatch indicates the command's correlation ID does
	// not match the pending prompt.
	ReasonCorrelationMismatch Reason = "correlation_mismatch"
	// ReasonInvalidSelection indicates a choice selection outside the
	// offered options on a prompt that does not allow custom values.
	ReasonInvalidSelection Reason = "invalid_selection"
	// ReasonSkipNotAllowed indicates a skip on a prompt that did not
	// declare skip_allowed.
	ReasonSkipNotAllowed Reason = "skip_not_allowed"
)

// ErrPromptPending indicates an attempt to register a prompt while one is
// already pending. This is a driver bug, not a consumer error.
var ErrPromptPending = errors.New("a prompt is already pending")

// Error implements error.
func (r *Rejection) Error() string {
	return fmt.Sprintf("prompt response rejected (%s): %s", r.Reason, r.Detail)
}

// NewGate constructs a gate. Logger and metrics default to no-ops.
func NewGate(log telemetry.Logger, metrics telemetry.Metrics) *Gate {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Gate{log: log, metrics: metrics}
}

// Register sets the session's pending prompt. It fails with ErrPromptPending
// when a prompt already exists: at most one prompt is outstanding per session
// at any instant, across process and network failures.
func (g *Gate) Register(ctx context.Context, sess *session.Session, p session.PendingPrompt) error {
	if sess == nil {
		return errors.New("session is required")
	}
	if sess.Pending != nil {
		return fmt.Errorf("session %s: %w", sess.ID, ErrPromptPending)
	}
	if p.ID == "" {
		return errors.New("prompt id is required")
	}
	switch p.Kind {
	case session.PromptChoice:
		if p.Choice == nil || len(p.Choice.Options) == 0 {
			return errors.New("choice prompt requires options")
		}
	case session.PromptInput:
		if p.Input == nil {
			p.Input = &session.InputDetails{}
		}
	case session.PromptStepConfirmation:
		if p.Confirmation == nil || len(p.Confirmation.Options) == 0 {
			return errors.New("step confirmation prompt requires options")
		}
	default:
		return fmt.Errorf("unknown prompt kind %q", p.Kind)
	}
	sess.Pending = &p
	g.metrics.IncCounter("guide_prompts_registered", 1, "kind", string(p.Kind))
	return nil
}

// Respond validates cmd against the session's pending prompt. On acceptance
// the pending prompt is cleared on the in-memory session and the resolution
// is returned; the caller persists the clear. On rejection a *Rejection is
// returned and the session is unchanged.
func (g *Gate) Respond(ctx context.Context, sess *session.Session, cmd command.Command) (Resolution, error) {
	if sess == nil {
		return Resolution{}, errors.New("session is required")
	}
	if cmd == nil {
		return Resolution{}, errors.New("command is required")
	}
	pending := sess.Pending
	if pending == nil {
		return Resolution{}, g.reject(ctx, sess, ReasonNoPrompt, "no prompt is pending")
	}

	var res Resolution
	switch c := cmd.(type) {
	case command.Skip:
		if !pending.SkipAllowed {
			return Resolution{}, g.reject(ctx, sess, ReasonSkipNotAllowed, "prompt does not allow skip")
		}
		res = Resolution{Prompt: *pending, Skipped: true}

	case command.Choice:
		if pending.Kind != session.PromptChoice {
			return Resolution{}, g.reject(ctx, sess, ReasonTypeMismatch,
				fmt.Sprintf("choice cannot answer a %s prompt", pending.Kind))
		}
		if c.ChoiceID != pending.ID {
			return Resolution{}, g.reject(ctx, sess, ReasonCorrelationMismatch,
				fmt.Sprintf("choice_id %q does not match pending prompt %q", c.ChoiceID, pending.ID))
		}
		label, offered := optionLabel(pending.Choice.Options, c.Selected)
		if !offered && !pending.Choice.AllowCustom {
			return Resolution{}, g.reject(ctx, sess, ReasonInvalidSelection,
				fmt.Sprintf("%q is not an offered option", c.Selected))
		}
		if !offered {
			label = c.Selected
		}
		res = Resolution{
			Prompt:        *pending,
			Selected:      c.Selected,
			SelectedLabel: label,
			Custom:        !offered,
			Note:          c.Note,
		}

	case command.Input:
		// Input answers both free-text prompts and step confirmations.
		// An options list on an input prompt is advisory only: free text is
		// accepted even when it matches no option. This asymmetry with
		// choice prompts is deliberate.
		if pending.Kind != session.PromptInput && pending.Kind != session.PromptStepConfirmation {
			return Resolution{}, g.reject(ctx, sess, ReasonTypeMismatch,
				fmt.Sprintf("input cannot answer a %s prompt", pending.Kind))
		}
		res = Resolution{Prompt: *pending, Value: c.Value}

	default:
		return Resolution{}, g.reject(ctx, sess, ReasonTypeMismatch, fmt.Sprintf("unknown command %T", cmd))
	}

	sess.Pending = nil
	g.metrics.IncCounter("guide_prompts_resolved", 1, "kind", string(res.Prompt.Kind))
	return res, nil
}

func (g *Gate) reject(ctx context.Context, sess *session.Session, reason Reason, detail string) error {
	g.log.Debug(ctx, "prompt response rejected", "session_id", sess.ID, "reason", string(reason), "detail", detail)
	g.metrics.IncCounter("guide_prompts_rejected", 1, "reason", string(reason))
	return &Rejection{Reason: reason, Detail: detail}
}

func optionLabel(options []session.ChoiceOption, selected string) (string, bool) {
	for _, opt := range options {
		if opt.ID == selected {
			return opt.Label, true
		}
	}
	return "", false
}
