package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"guidewalk.dev/guidewalk/runtime/guide/telemetry"
)

var (
	// ErrSectionOpen indicates a section_start was attempted while another
	// section is still open. At most one section accepts chunks at a time.
	ErrSectionOpen = errors.New("a section is already open")

	// ErrSectionNotOpen indicates a chunk or section_complete was attempted
	// for a section that is not currently open.
	ErrSectionNotOpen = errors.New("section is not open")
)

// Emitter serializes a session's events onto a single Sink and enforces
// section framing: chunks are only accepted between a section_start and its
// matching section_complete, and no two sections are open concurrently.
//
// Framing violations are local logic errors. The emitter rejects the event,
// logs it, and leaves both the sink and session state untouched; they are
// never surfaced to consumers as session-level error events.
//
// Every delivered event is also logged as a diagnostic entry. The log is
// purely observational and is never read back to reconstruct state.
type Emitter struct {
	mu        sync.Mutex
	sink      Sink
	sessionID string
	open      string
	log       telemetry.Logger
}

// NewEmitter constructs an emitter for the session. The openSection argument
// restores the framing state from a persisted session so a resumed turn
// continues appending to the section that was open when the turn suspended;
// pass "" for a fresh turn.
func NewEmitter(sink Sink, sessionID, openSection string, log telemetry.Logger) (*Emitter, error) {
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Emitter{sink: sink, sessionID: sessionID, open: openSection, log: log}, nil
}

// OpenSection returns the name of the currently open section, or "".
func (e *Emitter) OpenSection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// SectionStart opens the named section and emits its section_start marker.
func (e *Emitter) SectionStart(ctx context.Context, section string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open != "" {
		e.log.Warn(ctx, "section_start rejected", "session_id", e.sessionID, "section", section, "open", e.open)
		return fmt.Errorf("open %q: %w", e.open, ErrSectionOpen)
	}
	if err := e.send(ctx, NewSectionStart(e.sessionID, section)); err != nil {
		return err
	}
	e.open = section
	return nil
}

// Chunk emits a text fragment for the currently open section.
func (e *Emitter) Chunk(ctx context.Context, section, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if section == "" || section != e.open {
		e.log.Warn(ctx, "chunk rejected", "session_id", e.sessionID, "section", section, "open", e.open)
		return fmt.Errorf("chunk for %q: %w", section, ErrSectionNotOpen)
	}
	return e.send(ctx, NewChunk(e.sessionID, section, text))
}

// SectionComplete closes the currently open section and emits its
// section_complete marker.
func (e *Emitter) SectionComplete(ctx context.Context, section string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if section == "" || section != e.open {
		e.log.Warn(ctx, "section_complete rejected", "session_id", e.sessionID, "section", section, "open", e.open)
		return fmt.Errorf("complete for %q: %w", section, ErrSectionNotOpen)
	}
	if err := e.send(ctx, NewSectionComplete(e.sessionID, section)); err != nil {
		return err
	}
	e.open = ""
	return nil
}

// Send delivers an event that is not subject to section framing (prompts,
// phase markers, lifecycle signals, resume replay events).
func (e *Emitter) Send(ctx context.Context, event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.send(ctx, event)
}

func (e *Emitter) send(ctx context.Context, event Event) error {
	if err := e.sink.Send(ctx, event); err != nil {
		return fmt.Errorf("send %s: %w", event.Type(), err)
	}
	e.log.Debug(ctx, "event", "session_id", e.sessionID, "type", string(event.Type()), "payload", event.Payload())
	return nil
}
