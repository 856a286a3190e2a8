// Package planner defines the collaborator boundary for guide content
// generation. The driver treats "produce the next fragment of section text"
// and "produce a structured prompt" as opaque operations behind the Planner
// interface; how an implementation achieves them (which model, which tools,
// how much internal parallelism) is invisible to the protocol. Implementations
// that fan out sub-tasks internally must join results before returning: the
// driver emits outcomes in call order and never interleaves concurrent
// branches into a section's stream.
//
// Every method is idempotent with respect to already-persisted session state:
// the request carries the persisted prior content and the resolution of any
// prompt that suspended generation, so a repeated call after a crash before
// the corresponding save must not duplicate already-saved content.
package planner

import "context"

type (
	// Planner produces guide content and structured prompts for one work
	// item. Implementations must be stateless between calls; all durable
	// state lives in the session.
	Planner interface {
		// Plan produces the content plan for the work item: the ordered
		// section names, whether the item is step-oriented, and the step
		// titles when it is. Returns an error on fatal planning failure.
		Plan(ctx context.Context, item WorkItemContext) (Plan, error)

		// GenerateSectionChunk produces the next outcome for the named
		// section: a text fragment, a completion marker, or a prompt the
		// consumer must answer before the section can continue. Returns an
		// error only on fatal generation failure.
		GenerateSectionChunk(ctx context.Context, req SectionRequest) (SectionOutcome, error)

		// ConfirmStep produces the prompt for the current step: a
		// completion confirmation, a choice between approaches, or a
		// redirect to a separate conversational surface.
		ConfirmStep(ctx context.Context, req StepRequest) (StepPrompt, error)
	}

	// WorkItemContext describes the work item a guide is generated for.
	WorkItemContext struct {
		// WorkItemID identifies the work item.
		WorkItemID string
		// Title is the work item title.
		Title string
		// Description is the work item description.
		Description string
		// Dependencies lists work items this item depends on.
		Dependencies []string
		// Dependents lists work items that depend on this item.
		Dependents []string
	}

	// Plan is the content plan for a session.
	Plan struct {
		// Description positions the work item for the context event.
		Description string
		// Sections are the section names in generation order.
		Sections []string
		// NeedsSteps reports whether the item is step-oriented and the
		// session enters the stepping phase after drafting.
		NeedsSteps bool
		// Steps are the step titles, in order, when NeedsSteps is true.
		Steps []string
	}

	// SectionRequest asks for the next outcome of one section.
	SectionRequest struct {
		// SessionID identifies the requesting session.
		SessionID string
		// WorkItem is the owning work item context.
		WorkItem WorkItemContext
		// Section is the section being generated.
		Section string
		// Prior is the already-persisted accumulated section content.
		Prior string
		// Resolution carries the answer to the prompt that suspended this
		// section, when generation resumes after one. Nil otherwise.
		Resolution *PromptResolution
	}

	// SectionOutcome is the tagged result of GenerateSectionChunk. Exactly
	// one variant is meaningful, selected by Kind.
	SectionOutcome struct {
		// Kind discriminates the outcome.
		Kind SectionOutcomeKind
		// Chunk is the generated text fragment when Kind is OutcomeChunk.
		Chunk string
		// Choice is the disambiguation prompt when Kind is OutcomeChoice.
		Choice *ChoiceSpec
		// Input is the free-text prompt when Kind is OutcomeInput.
		Input *InputSpec
	}

	// StepRequest asks for the prompt of one step.
	StepRequest struct {
		// SessionID identifies the requesting session.
		SessionID string
		// WorkItem is the owning work item context.
		WorkItem WorkItemContext
		// StepNumber is the 1-based step ordinal.
		StepNumber int
		// StepTitle is the step title from the plan.
		StepTitle string
		// TotalSteps is the number of planned steps.
		TotalSteps int
		// Clarification carries the consumer's follow-up answer when the
		// confirmation is re-issued after a needs-clarification response.
		// Nil otherwise.
		Clarification *PromptResolution
	}

	// StepPrompt is the tagged result of ConfirmStep. Exactly one variant is
	// set, selected by Kind.
	StepPrompt struct {
		// Kind discriminates the prompt.
		Kind StepPromptKind
		// Confirmation is set when Kind is StepPromptConfirmation.
		Confirmation *ConfirmationSpec
		// Choice is set when Kind is StepPromptChoice.
		Choice *ChoiceSpec
		// Redirect is set when Kind is StepPromptRedirect.
		Redirect *RedirectSpec
	}

	// ChoiceSpec describes a multiple-choice prompt requested by the planner.
	ChoiceSpec struct {
		// Question is the consumer-facing question.
		Question string
		// Options are the offered selections.
		Options []ChoiceOption
		// AllowCustom permits free-text selections outside Options.
		AllowCustom bool
		// SkipAllowed permits resolving the prompt with a skip.
		SkipAllowed bool
		// ResearchHint optionally suggests what to look up before answering.
		ResearchHint string
	}

	// ChoiceOption is one selectable answer of a ChoiceSpec.
	ChoiceOption struct {
		// ID is the stable option identifier.
		ID string
		// Label is the short display text.
		Label string
		// Description elaborates on the option.
		Description string
	}

	// InputSpec describes a free-text prompt requested by the planner.
	InputSpec struct {
		// Question is the consumer-facing question.
		Question string
		// Placeholder is optional hint text.
		Placeholder string
		// Options optionally suggests common answers (advisory only).
		Options []string
		// SkipAllowed permits resolving the prompt with a skip.
		SkipAllowed bool
	}

	// ConfirmationSpec describes a step-completion confirmation.
	ConfirmationSpec struct {
		// Question is the confirmation question.
		Question string
		// Options are the literal answers offered, typically StepCompleted
		// and StepNeedsClarification.
		Options []string
		// SkipAllowed permits skipping the confirmation, which advances the
		// step without recording a decision.
		SkipAllowed bool
	}

	// RedirectSpec hands the step off to a separate conversational surface.
	RedirectSpec struct {
		// Message explains the hand-off to the consumer.
		Message string
	}

	// PromptResolution is the driver's summary of an accepted prompt
	// response, passed back so repeated planner calls are idempotent.
	PromptResolution struct {
		// PromptID is the resolved prompt's correlation ID.
		PromptID string
		// Skipped reports the prompt was skipped.
		Skipped bool
		// Selected is the accepted choice selection, when applicable.
		Selected string
		// Label is the display label of the accepted option.
		Label string
		// Note is the optional consumer note on a choice.
		Note string
		// Value is the accepted input text, when applicable.
		Value string
	}

	// SectionOutcomeKind discriminates SectionOutcome variants.
	SectionOutcomeKind string

	// StepPromptKind discriminates StepPrompt variants.
	StepPromptKind string
)

const (
	// OutcomeChunk carries a text fragment to append to the section.
	OutcomeChunk SectionOutcomeKind = "chunk"
	// OutcomeComplete marks the section as finished.
	OutcomeComplete SectionOutcomeKind = "complete"
	// OutcomeChoice suspends the section on a multiple-choice prompt.
	OutcomeChoice SectionOutcomeKind = "choice"
	// OutcomeInput suspends the section on a free-text prompt.
	OutcomeInput SectionOutcomeKind = "input"
)

const (
	// StepPromptConfirmation asks the consumer to confirm step completion.
	StepPromptConfirmation StepPromptKind = "confirmation"
	// StepPromptChoice asks the consumer to choose between approaches.
	StepPromptChoice StepPromptKind = "choice"
	// StepPromptRedirect hands the step off to another surface.
	StepPromptRedirect StepPromptKind = "redirect"
)

const (
	// StepCompleted is the confirmation answer sentinel that marks the
	// current step complete.
	StepCompleted = "completed"
	// StepNeedsClarification is the confirmation answer sentinel that asks
	// for a follow-up input prompt before re-issuing the confirmation.
	StepNeedsClarification = "needs_clarification"
)
