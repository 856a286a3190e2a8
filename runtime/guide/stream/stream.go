// Package stream defines the closed set of client-facing events emitted during
// guide generation and the Sink abstraction that delivers them.
//
// Every interaction with a session is multiplexed onto a single ordered event
// stream: generated content chunks, phase markers, control prompts, lifecycle
// signals, and the resume replay burst all travel through the same Sink. All
// event types implement the Event interface and embed Base to provide standard
// metadata. Payload field names are part of the wire contract consumed by
// existing clients and must not change.
package stream

import "context"

type (
	// Sink delivers streaming events to consumers over a transport (SSE,
	// WebSocket, Pulse). Implementations must be safe for concurrent Send
	// calls and are responsible for marshaling events into their wire format.
	Sink interface {
		// Send publishes an event to the sink's underlying transport. Send
		// returns an error when delivery fails (connection closed,
		// serialization error, transport unavailable); the driver surfaces
		// such failures to the caller without corrupting session state.
		Send(ctx context.Context, event Event) error

		// Close releases resources owned by the sink. Close is idempotent;
		// after Close returns, subsequent Send calls must return errors.
		Close(ctx context.Context) error
	}

	// Event describes a streaming event delivered to consumers through a
	// Sink. Concrete event types embed Base; sinks use the interface for
	// generic marshaling and consumers type-assert for structured access.
	Event interface {
		// Type returns the event type constant (e.g. EventChunk, EventDone).
		Type() EventType
		// SessionID returns the session that produced this event.
		SessionID() string
		// Payload returns the event-specific data in a JSON-serializable
		// form. Field names are stable wire contract.
		Payload() any
	}

	// Context positions the work item relative to its neighbors. Emitted at
	// most once near session start, before the first section opens.
	Context struct {
		Base
		Data ContextPayload
	}

	// SectionStart marks a named section as open for chunk appends.
	SectionStart struct {
		Base
		Data SectionPayload
	}

	// Chunk streams a fragment of generated text for the currently open
	// section. Consumers concatenate Text from sequential chunks.
	Chunk struct {
		Base
		Data ChunkPayload
	}

	// SectionComplete marks a section as finished and immutable. No further
	// chunks arrive for it; resume replays its full content instead.
	SectionComplete struct {
		Base
		Data SectionPayload
	}

	// ChoiceRequired streams a multiple-choice prompt that must be answered
	// before generation continues.
	ChoiceRequired struct {
		Base
		Data ChoiceRequiredPayload
	}

	// InputRequired streams a free-text prompt that must be answered before
	// generation continues.
	InputRequired struct {
		Base
		Data InputRequiredPayload
	}

	// StepStart announces the current step of the stepping phase.
	StepStart struct {
		Base
		Data StepStartPayload
	}

	// StepComplete marks a step as confirmed done.
	StepComplete struct {
		Base
		Data StepCompletePayload
	}

	// StepConfirmationRequired streams a step-completion confirmation prompt.
	StepConfirmationRequired struct {
		Base
		Data StepConfirmationRequiredPayload
	}

	// ProgressSaved is an advisory checkpoint marker emitted after a phase
	// transition has been durably persisted. Safe to ignore for correctness.
	ProgressSaved struct {
		Base
		Data ProgressSavedPayload
	}

	// RedirectToChat signals a hand-off to a separate conversational surface.
	// Terminal for the active turn but not necessarily for the session.
	RedirectToChat struct {
		Base
		Data RedirectToChatPayload
	}

	// Done is the terminal success event.
	Done struct {
		Base
		Data DonePayload
	}

	// Error is the terminal failure event for the current turn. The session
	// may still be resumable when the failure was transient.
	Error struct {
		Base
		Data ErrorPayload
	}

	// SessionRestored opens the resume replay burst.
	SessionRestored struct {
		Base
		Data SessionRestoredPayload
	}

	// RestoredContent replays the full accumulated text of one section as a
	// single event (not chunked).
	RestoredContent struct {
		Base
		Data RestoredContentPayload
	}

	// RestoredSteps replays the full step list with completion flags.
	RestoredSteps struct {
		Base
		Data RestoredStepsPayload
	}

	// RestoredDecisions replays the full decision list.
	RestoredDecisions struct {
		Base
		Data RestoredDecisionsPayload
	}

	// ContextPayload is the typed wire payload for context events.
	ContextPayload struct {
		// Description summarizes the work item's position in the project.
		Description string `json:"description"`
		// Dependencies lists work items this item depends on.
		Dependencies []string `json:"dependencies"`
		// Dependents lists work items that depend on this item.
		Dependents []string `json:"dependents"`
	}

	// SectionPayload names a section for start/complete markers.
	SectionPayload struct {
		Section string `json:"section"`
	}

	// ChunkPayload carries a text fragment for the named section.
	ChunkPayload struct {
		// Section names the open section the text belongs to.
		Section string `json:"section"`
		// Text is the generated fragment.
		Text string `json:"text"`
	}

	// ChoiceRequiredPayload is the typed wire payload for choice prompts.
	ChoiceRequiredPayload struct {
		// ChoiceID correlates the consumer's choice command with this prompt.
		ChoiceID string `json:"choice_id"`
		// Question is the consumer-facing question.
		Question string `json:"question"`
		// Options are the offered selections.
		Options []ChoiceOptionPayload `json:"options"`
		// AllowCustom permits a free-text selection outside Options.
		AllowCustom bool `json:"allow_custom"`
		// SkipAllowed permits resolving the prompt with a skip command.
		SkipAllowed bool `json:"skip_allowed"`
		// ResearchHint optionally suggests what to look up before answering.
		ResearchHint string `json:"research_hint,omitempty"`
	}

	// ChoiceOptionPayload is a single selectable answer.
	ChoiceOptionPayload struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}

	// InputRequiredPayload is the typed wire payload for input prompts.
	//
	// Options, when present, is a UI convenience: free text is still
	// accepted. This is a deliberate asymmetry from ChoiceRequiredPayload.
	InputRequiredPayload struct {
		// PromptID correlates the consumer's input command with this prompt.
		PromptID string `json:"prompt_id"`
		// Question is the consumer-facing question.
		Question string `json:"question"`
		// Placeholder is optional hint text for the input field.
		Placeholder string `json:"placeholder,omitempty"`
		// Options optionally suggests common answers.
		Options []string `json:"options,omitempty"`
	}

	// StepStartPayload announces a step of the stepping phase.
	StepStartPayload struct {
		StepNumber int    `json:"step_number"`
		StepTitle  string `json:"step_title"`
		TotalSteps int    `json:"total_steps"`
	}

	// StepCompletePayload marks a step as done.
	StepCompletePayload struct {
		StepNumber int `json:"step_number"`
	}

	// StepConfirmationRequiredPayload is the typed wire payload for step
	// confirmation prompts.
	StepConfirmationRequiredPayload struct {
		// PromptID correlates the consumer's response with this prompt.
		PromptID string `json:"prompt_id"`
		// Question is the confirmation question.
		Question string `json:"question"`
		// Options are the literal answers offered to the consumer.
		Options []string `json:"options"`
	}

	// ProgressSavedPayload reports the durably persisted phase.
	ProgressSavedPayload struct {
		Phase string `json:"phase"`
	}

	// RedirectToChatPayload describes a hand-off to another surface.
	RedirectToChatPayload struct {
		// Message explains the hand-off to the consumer.
		Message string `json:"message"`
		// StepNumber is the step the hand-off applies to.
		StepNumber int `json:"step_number"`
	}

	// DonePayload is the terminal success payload.
	DonePayload struct {
		// ResultID identifies the finished guide.
		ResultID string `json:"result_id"`
		// SessionID identifies the session that produced it.
		SessionID string `json:"session_id"`
	}

	// ErrorPayload is the terminal failure payload.
	ErrorPayload struct {
		Message string `json:"message"`
	}

	// SessionRestoredPayload opens a resume replay burst.
	SessionRestoredPayload struct {
		SessionID string `json:"session_id"`
		Phase     string `json:"phase"`
	}

	// RestoredContentPayload replays one section's accumulated text.
	RestoredContentPayload struct {
		Section string `json:"section"`
		Content string `json:"content"`
	}

	// RestoredStepsPayload summarizes all steps and the current position.
	RestoredStepsPayload struct {
		// Steps lists every step with its completion flag.
		Steps []RestoredStepPayload `json:"steps"`
		// CurrentStep is the lowest-numbered incomplete step, or past-the-end
		// when all steps are complete.
		CurrentStep int `json:"current_step"`
	}

	// RestoredStepPayload is one step in a resume replay.
	RestoredStepPayload struct {
		StepNumber int    `json:"step_number"`
		Title      string `json:"title"`
		Complete   bool   `json:"complete"`
	}

	// RestoredDecisionsPayload replays the full decision list.
	RestoredDecisionsPayload struct {
		Decisions []RestoredDecisionPayload `json:"decisions"`
	}

	// RestoredDecisionPayload is one decision in a resume replay.
	RestoredDecisionPayload struct {
		StepNumber  int    `json:"step_number"`
		Description string `json:"description"`
	}

	// Base provides a default implementation of Event. Embed this struct in
	// concrete event types to inherit Type(), SessionID(), and Payload().
	//
	// Field names are abbreviated to minimize visual clutter when
	// constructing events; consumers use the interface methods or
	// type-assert to concrete types.
	Base struct {
		// t is the event type constant.
		t EventType
		// s is the session identifier shared by all events of a session.
		s string
		// p is the JSON-serializable payload returned by Payload().
		p any
	}
)

// EventType enumerates stream payload flavors.
type EventType string

const (
	// EventContext positions the work item. Emitted at most once, near
	// session start.
	EventContext EventType = "context"

	// EventSectionStart marks a section as open for chunk appends. Chunks
	// for a section arrive strictly between its section_start and matching
	// section_complete.
	EventSectionStart EventType = "section_start"

	// EventChunk streams generated text for the currently open section.
	EventChunk EventType = "chunk"

	// EventSectionComplete marks a section as finished and immutable.
	EventSectionComplete EventType = "section_complete"

	// EventChoiceRequired streams a multiple-choice prompt. Generation is
	// suspended until the correlated choice (or skip) command arrives.
	EventChoiceRequired EventType = "choice_required"

	// EventInputRequired streams a free-text prompt. Generation is suspended
	// until the correlated input (or skip) command arrives.
	EventInputRequired EventType = "input_required"

	// EventStepStart announces the current step of the stepping phase.
	EventStepStart EventType = "step_start"

	// EventStepComplete marks a step as confirmed done.
	EventStepComplete EventType = "step_complete"

	// EventStepConfirmationRequired streams a step confirmation prompt.
	EventStepConfirmationRequired EventType = "step_confirmation_required"

	// EventProgressSaved is an advisory checkpoint marker.
	EventProgressSaved EventType = "progress_saved"

	// EventRedirectToChat signals a hand-off to a separate conversational
	// surface. Terminal for the turn, not for the session.
	EventRedirectToChat EventType = "redirect_to_chat"

	// EventDone is the terminal success event.
	EventDone EventType = "done"

	// EventError is the terminal failure event for the current turn.
	EventError EventType = "error"

	// EventSessionRestored opens the resume replay burst.
	EventSessionRestored EventType = "session_restored"

	// EventRestoredContent replays one section's full content.
	EventRestoredContent EventType = "restored_content"

	// EventRestoredSteps replays the step list with completion flags.
	EventRestoredSteps EventType = "restored_steps"

	// EventRestoredDecisions replays the decision list.
	EventRestoredDecisions EventType = "restored_decisions"
)

// NewBase constructs a Base event with the given type, session ID, and payload.
func NewBase(t EventType, sessionID string, payload any) Base {
	return Base{t: t, s: sessionID, p: payload}
}

// Type implements Event.Type.
func (e Base) Type() EventType { return e.t }

// SessionID implements Event.SessionID.
func (e Base) SessionID() string { return e.s }

// Payload implements Event.Payload.
func (e Base) Payload() any { return e.p }

// NewContext constructs a context event.
func NewContext(sessionID string, data ContextPayload) *Context {
	return &Context{Base: NewBase(EventContext, sessionID, data), Data: data}
}

// NewSectionStart constructs a section_start event.
func NewSectionStart(sessionID, section string) *SectionStart {
	data := SectionPayload{Section: section}
	return &SectionStart{Base: NewBase(EventSectionStart, sessionID, data), Data: data}
}

// NewChunk constructs a chunk event for the named section.
func NewChunk(sessionID, section, text string) *Chunk {
	data := ChunkPayload{Section: section, Text: text}
	return &Chunk{Base: NewBase(EventChunk, sessionID, data), Data: data}
}

// NewSectionComplete constructs a section_complete event.
func NewSectionComplete(sessionID, section string) *SectionComplete {
	data := SectionPayload{Section: section}
	return &SectionComplete{Base: NewBase(EventSectionComplete, sessionID, data), Data: data}
}

// NewChoiceRequired constructs a choice_required event.
func NewChoiceRequired(sessionID string, data ChoiceRequiredPayload) *ChoiceRequired {
	return &ChoiceRequired{Base: NewBase(EventChoiceRequired, sessionID, data), Data: data}
}

// NewInputRequired constructs an input_required event.
func NewInputRequired(sessionID string, data InputRequiredPayload) *InputRequired {
	return &InputRequired{Base: NewBase(EventInputRequired, sessionID, data), Data: data}
}

// NewStepStart constructs a step_start event.
func NewStepStart(sessionID string, data StepStartPayload) *StepStart {
	return &StepStart{Base: NewBase(EventStepStart, sessionID, data), Data: data}
}

// NewStepComplete constructs a step_complete event.
func NewStepComplete(sessionID string, stepNumber int) *StepComplete {
	data := StepCompletePayload{StepNumber: stepNumber}
	return &StepComplete{Base: NewBase(EventStepComplete, sessionID, data), Data: data}
}

// NewStepConfirmationRequired constructs a step_confirmation_required event.
func NewStepConfirmationRequired(sessionID string, data StepConfirmationRequiredPayload) *StepConfirmationRequired {
	return &StepConfirmationRequired{Base: NewBase(EventStepConfirmationRequired, sessionID, data), Data: data}
}

// NewProgressSaved constructs a progress_saved event.
func NewProgressSaved(sessionID, phase string) *ProgressSaved {
	data := ProgressSavedPayload{Phase: phase}
	return &ProgressSaved{Base: NewBase(EventProgressSaved, sessionID, data), Data: data}
}

// NewRedirectToChat constructs a redirect_to_chat event.
func NewRedirectToChat(sessionID, message string, stepNumber int) *RedirectToChat {
	data := RedirectToChatPayload{Message: message, StepNumber: stepNumber}
	return &RedirectToChat{Base: NewBase(EventRedirectToChat, sessionID, data), Data: data}
}

// NewDone constructs a done event.
func NewDone(sessionID, resultID string) *Done {
	data := DonePayload{ResultID: resultID, SessionID: sessionID}
	return &Done{Base: NewBase(EventDone, sessionID, data), Data: data}
}

// NewError constructs an error event.
func NewError(sessionID, message string) *Error {
	data := ErrorPayload{Message: message}
	return &Error{Base: NewBase(EventError, sessionID, data), Data: data}
}

// NewSessionRestored constructs a session_restored event.
func NewSessionRestored(sessionID, phase string) *SessionRestored {
	data := SessionRestoredPayload{SessionID: sessionID, Phase: phase}
	return &SessionRestored{Base: NewBase(EventSessionRestored, sessionID, data), Data: data}
}

// NewRestoredContent constructs a restored_content event.
func NewRestoredContent(sessionID, section, content string) *RestoredContent {
	data := RestoredContentPayload{Section: section, Content: content}
	return &RestoredContent{Base: NewBase(EventRestoredContent, sessionID, data), Data: data}
}

// NewRestoredSteps constructs a restored_steps event.
func NewRestoredSteps(sessionID string, data RestoredStepsPayload) *RestoredSteps {
	return &RestoredSteps{Base: NewBase(EventRestoredSteps, sessionID, data), Data: data}
}

// NewRestoredDecisions constructs a restored_decisions event.
func NewRestoredDecisions(sessionID string, data RestoredDecisionsPayload) *RestoredDecisions {
	return &RestoredDecisions{Base: NewBase(EventRestoredDecisions, sessionID, data), Data: data}
}
