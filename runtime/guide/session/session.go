// Package session defines the durable state model for interactive guide
// generation sessions.
//
// A Session is the unit of resumability: it owns every entity the protocol
// needs to reconstruct a consumer's view after an interruption (generated
// section content, step progress, accepted decisions, and the single pending
// prompt, when one exists). Stores persist whole-session snapshots; a Save
// fully overwrites the prior state for that session ID so readers always see
// a consistent snapshot.
package session

import (
	"context"
	"errors"
	"time"
)

type (
	// Session captures the complete recoverable state of one guide
	// generation session for one work item.
	//
	// Contract:
	// - Sessions are created explicitly (Store.Create) and deleted explicitly
	//   (Store.Delete); there is no implicit expiry.
	// - At most one pending prompt exists at any instant.
	// - At most one section is open for appends at any instant.
	// - A session whose phase is PhaseDone is retrievable but inert.
	Session struct {
		// ID is the durable identifier of the session.
		ID string
		// WorkItemID identifies the work item this guide is generated for.
		WorkItemID string
		// Phase is the current generation phase.
		Phase Phase
		// WorkItem carries the positioning context captured at plan time.
		// It is persisted so replanning is never required after a restart.
		WorkItem WorkItem
		// Sections holds the planned sections in generation order.
		Sections []Section
		// ActiveSection names the section currently open for chunk appends.
		// Empty when no section is open.
		ActiveSection string
		// NeedsSteps reports whether the work item is step-oriented and the
		// session enters the stepping phase after drafting.
		NeedsSteps bool
		// PlannedSteps holds the step titles from the content plan. Steps
		// themselves are materialized when the session enters the stepping
		// phase.
		PlannedSteps []string
		// Steps holds the guided execution steps, ordered by Number.
		// Populated when the session enters the stepping phase.
		Steps []Step
		// Decisions is the append-only list of accepted stepping-phase
		// choices, ordered by decision time.
		Decisions []Decision
		// Pending is the single outstanding prompt blocking generation,
		// or nil when the session is live.
		Pending *PendingPrompt
		// ResultID identifies the finished guide once the phase is done.
		ResultID string
		// ErrorMessage records the terminal error of the last turn when the
		// phase is PhaseError. The session remains loadable for retry.
		ErrorMessage string
		// CreatedAt records when the session was created.
		CreatedAt time.Time
		// UpdatedAt records the last persisted mutation.
		UpdatedAt time.Time
	}

	// WorkItem is the persisted context of the owning work item. It is
	// captured at session start so the planner can be re-invoked after a
	// process restart without re-resolving the work item.
	WorkItem struct {
		// Title is the work item title.
		Title string
		// Description is the work item description.
		Description string
		// Dependencies lists work items this item depends on.
		Dependencies []string
		// Dependents lists work items that depend on this item.
		Dependents []string
	}

	// Section is a named, ordered block of generated content.
	//
	// Once Complete is set the section is immutable: no further appends are
	// accepted and resume replays Content verbatim.
	Section struct {
		// Name is the section identity within the session (e.g. "overview").
		Name string
		// Content is the accumulated text, in append order.
		Content string
		// Complete marks the section as finished and immutable.
		Complete bool
	}

	// Step is a numbered unit of guided execution.
	Step struct {
		// Number is the 1-based ordinal of the step.
		Number int
		// Title is the human-readable step title.
		Title string
		// Complete marks the step as confirmed done.
		Complete bool
	}

	// Decision is an immutable record of a choice accepted during the
	// stepping phase. Decisions are never mutated or removed.
	Decision struct {
		// StepNumber is the step the decision was made for.
		StepNumber int
		// Description summarizes the accepted choice.
		Description string
		// DecidedAt records when the decision was accepted.
		DecidedAt time.Time
	}

	// PendingPrompt is the single outstanding request for consumer input.
	// Exactly one of Choice, Input, or Confirmation is set, matching Kind.
	PendingPrompt struct {
		// Kind discriminates the prompt variant.
		Kind PromptKind
		// ID correlates consumer responses with this prompt.
		ID string
		// Question is the consumer-facing question text.
		Question string
		// StepNumber is the owning step for stepping-phase prompts, zero
		// for drafting-phase prompts.
		StepNumber int
		// Section names the suspended section for drafting-phase prompts.
		Section string
		// SkipAllowed reports whether a skip command resolves this prompt.
		SkipAllowed bool
		// Choice carries the multiple-choice fields when Kind is PromptChoice.
		Choice *ChoiceDetails
		// Input carries the free-text fields when Kind is PromptInput.
		Input *InputDetails
		// Confirmation carries the step-confirmation fields when Kind is
		// PromptStepConfirmation.
		Confirmation *ConfirmationDetails
	}

	// ChoiceDetails holds the variant fields of a multiple-choice prompt.
	ChoiceDetails struct {
		// Options are the offered selections.
		Options []ChoiceOption
		// AllowCustom permits a free-text selection outside Options.
		AllowCustom bool
		// ResearchHint optionally suggests what to look up before answering.
		ResearchHint string
	}

	// ChoiceOption is a single selectable answer.
	ChoiceOption struct {
		// ID is the stable option identifier submitted by consumers.
		ID string `json:"id"`
		// Label is the short display text.
		Label string `json:"label"`
		// Description elaborates on the option.
		Description string `json:"description"`
	}

	// InputDetails holds the variant fields of a free-text prompt.
	//
	// Options, when present, is a UI convenience, not a closed enumeration:
	// free text is always accepted. This asymmetry with ChoiceDetails is
	// deliberate and load-bearing for existing consumers.
	InputDetails struct {
		// Placeholder is optional hint text for the input field.
		Placeholder string
		// Options optionally suggests common answers.
		Options []string
	}

	// ConfirmationDetails holds the variant fields of a step confirmation.
	ConfirmationDetails struct {
		// Options are the literal answers offered to the consumer,
		// typically the completed and needs-clarification sentinels.
		Options []string
	}

	// Phase is the generation lifecycle phase of a session.
	Phase string

	// PromptKind discriminates pending prompt variants.
	PromptKind string

	// Store persists session snapshots keyed by session ID.
	//
	// Implementations must be linearizable per session ID: a later Save fully
	// overwrites the prior snapshot, and Load returns either the previous or
	// the new snapshot, never a mixture. Implementations must return deep
	// copies; callers never observe aliased store-held state.
	Store interface {
		// Create allocates a new session for the work item and persists it
		// in the planning phase.
		Create(ctx context.Context, workItemID string) (Session, error)
		// Load returns the session snapshot.
		// Returns ErrSessionNotFound when the session does not exist.
		Load(ctx context.Context, sessionID string) (Session, error)
		// Save atomically replaces the stored snapshot (last writer wins).
		// Returns ErrSessionNotFound when the session was deleted, which
		// callers treat as a stop signal, not a failure.
		Save(ctx context.Context, sess Session) error
		// Delete removes the session and everything it owns. Idempotent:
		// deleting an absent session returns false with no error.
		Delete(ctx context.Context, sessionID string) (bool, error)
	}
)

const (
	// PhasePlanning indicates the content plan has not been produced yet.
	PhasePlanning Phase = "planning"
	// PhaseDrafting indicates sections are being generated.
	PhaseDrafting Phase = "drafting"
	// PhaseStepping indicates guided step execution is in progress.
	PhaseStepping Phase = "stepping"
	// PhaseDone indicates the session finished successfully and is inert.
	PhaseDone Phase = "done"
	// PhaseError indicates the last turn ended with a terminal error.
	// The session remains loadable so the consumer can resume or delete.
	PhaseError Phase = "error"
)

const (
	// PromptChoice is a multiple-choice prompt.
	PromptChoice PromptKind = "choice"
	// PromptInput is a free-text prompt.
	PromptInput PromptKind = "input"
	// PromptStepConfirmation is a step-completion confirmation prompt.
	PromptStepConfirmation PromptKind = "step_confirmation"
)

// ErrSessionNotFound indicates a session does not exist in the store.
var ErrSessionNotFound = errors.New("session not found")

// Section returns the named section, or nil when not planned.
func (s *Session) Section(name string) *Section {
	for i := range s.Sections {
		if s.Sections[i].Name == name {
			return &s.Sections[i]
		}
	}
	return nil
}

// NextSection returns the first incomplete section in plan order, or nil
// when drafting is finished.
func (s *Session) NextSection() *Section {
	for i := range s.Sections {
		if !s.Sections[i].Complete {
			return &s.Sections[i]
		}
	}
	return nil
}

// CurrentStep returns the lowest-numbered incomplete step, or len(Steps)+1
// when every step is complete.
func (s *Session) CurrentStep() int {
	for _, st := range s.Steps {
		if !st.Complete {
			return st.Number
		}
	}
	return len(s.Steps) + 1
}

// Step returns the step with the given number, or nil.
func (s *Session) Step(number int) *Step {
	for i := range s.Steps {
		if s.Steps[i].Number == number {
			return &s.Steps[i]
		}
	}
	return nil
}

// Terminal reports whether the session phase is done or error.
func (s *Session) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseError
}

// Clone returns a deep copy of the session. Stores use this to guarantee
// snapshot isolation between callers.
func (s Session) Clone() Session {
	out := s
	out.WorkItem.Dependencies = append([]string(nil), s.WorkItem.Dependencies...)
	out.WorkItem.Dependents = append([]string(nil), s.WorkItem.Dependents...)
	if s.Sections != nil {
		out.Sections = append([]Section(nil), s.Sections...)
	}
	if s.PlannedSteps != nil {
		out.PlannedSteps = append([]string(nil), s.PlannedSteps...)
	}
	if s.Steps != nil {
		out.Steps = append([]Step(nil), s.Steps...)
	}
	if s.Decisions != nil {
		out.Decisions = append([]Decision(nil), s.Decisions...)
	}
	if s.Pending != nil {
		p := *s.Pending
		if s.Pending.Choice != nil {
			c := *s.Pending.Choice
			c.Options = append([]ChoiceOption(nil), s.Pending.Choice.Options...)
			p.Choice = &c
		}
		if s.Pending.Input != nil {
			in := *s.Pending.Input
			in.Options = append([]string(nil), s.Pending.Input.Options...)
			p.Input = &in
		}
		if s.Pending.Confirmation != nil {
			cf := *s.Pending.Confirmation
			cf.Options = append([]string(nil), s.Pending.Confirmation.Options...)
			p.Confirmation = &cf
		}
		out.Pending = &p
	}
	return out
}
