// Package command defines the closed set of consumer commands that answer
// pending prompts, and their decoding from the wire envelope.
//
// Exactly three commands exist: choice, input, and skip. Each correlates to
// the session's single pending prompt; correlation and validation against the
// prompt are the prompt gate's job, not the decoder's. Decode failures are
// local protocol violations, never session-level errors.
package command

import (
	"encoding/json"
	"fmt"
)

type (
	// Command is a typed consumer response to a pending prompt. The set of
	// implementations is closed: Choice, Input, and Skip.
	Command interface {
		// Kind returns the command discriminator.
		Kind() Kind
	}

	// Choice answers a multiple-choice prompt.
	Choice struct {
		// ChoiceID correlates with the pending choice prompt.
		ChoiceID string
		// Selected is an offered option ID, or free text when the prompt
		// allows custom selections.
		Selected string
		// Note optionally carries consumer commentary on the selection.
		Note string
	}

	// Input answers a free-text prompt.
	Input struct {
		// Value is the submitted text.
		Value string
	}

	// Skip declines a prompt that declared skip_allowed.
	Skip struct{}

	// Kind discriminates command variants.
	Kind string

	// envelope is the wire form of an inbound command.
	envelope struct {
		Type     string `json:"type"`
		ChoiceID string `json:"choice_id,omitempty"`
		Selected string `json:"selected,omitempty"`
		Note     string `json:"note,omitempty"`
		Value    string `json:"value,omitempty"`
	}
)

const (
	// KindChoice identifies choice commands.
	KindChoice Kind = "choice"
	// KindInput identifies input commands.
	KindInput Kind = "input"
	// KindSkip identifies skip commands.
	KindSkip Kind = "skip"
)

// Kind implements Command.
func (Choice) Kind() Kind { return KindChoice }

// Kind implements Command.
func (Input) Kind() Kind { return KindInput }

// Kind implements Command.
func (Skip) Kind() Kind { return KindSkip }

// Decode parses a wire envelope into a typed command. Unknown types and
// malformed JSON are decode errors; they leave session state untouched and
// are reported to the submitting consumer only.
func Decode(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	switch Kind(env.Type) {
	case KindChoice:
		if env.ChoiceID == "" {
			return nil, fmt.Errorf("decode command: choice requires choice_id")
		}
		return Choice{ChoiceID: env.ChoiceID, Selected: env.Selected, Note: env.Note}, nil
	case KindInput:
		return Input{Value: env.Value}, nil
	case KindSkip:
		return Skip{}, nil
	default:
		return nil, fmt.Errorf("decode command: unknown type %q", env.Type)
	}
}

// Encode renders a typed command into its wire envelope. Transports and tests
// use it; the runtime itself only decodes.
func Encode(cmd Command) ([]byte, error) {
	var env envelope
	switch c := cmd.(type) {
	case Choice:
		env = envelope{Type: string(KindChoice), ChoiceID: c.ChoiceID, Selected: c.Selected, Note: c.Note}
	case Input:
		env = envelope{Type: string(KindInput), Value: c.Value}
	case Skip:
		env = envelope{Type: string(KindSkip)}
	default:
		return nil, fmt.Errorf("encode command: unknown command %T", cmd)
	}
	return json.Marshal(env)
}
