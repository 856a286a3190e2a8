// Package pulse exposes a stream.Sink implementation that publishes guide
// events to goa.design/pulse streams, and a Subscriber that reads them back.
// Services build a Redis client, pass it to the Pulse client, and hand the
// resulting sink to the guide driver; transport processes on other hosts
// subscribe to the same stream to serve reconnecting consumers.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	clientspulse "guidewalk.dev/guidewalk/features/guide/stream/pulse/clients/pulse"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

type (
	// Options configures the Pulse sink.
	Options struct {
		// Client is the Pulse client used to publish events. Required.
		Client clientspulse.Client
		// StreamID derives the target Pulse stream from an event. Defaults
		// to `guide/<SessionID>`.
		StreamID func(stream.Event) (string, error)
		// MarshalEnvelope overrides the envelope serialization (tests).
		MarshalEnvelope func(envelope) ([]byte, error)
	}

	// Sink publishes guide events into Pulse streams. Event order within a
	// session is preserved because every event of a session lands on the
	// same stream. Thread-safe for concurrent Send operations.
	Sink struct {
		client clientspulse.Client
		opts   sinkOptions
	}

	sinkOptions struct {
		streamID        func(stream.Event) (string, error)
		marshalEnvelope func(envelope) ([]byte, error)
	}

	// envelope wraps guide events for transmission over Pulse streams.
	envelope struct {
		// Type identifies the event kind (e.g. "chunk", "choice_required").
		Type string `json:"type"`
		// SessionID links the event to its guide session.
		SessionID string `json:"session_id"`
		// Timestamp records when the event was published (UTC).
		Timestamp time.Time `json:"timestamp"`
		// Payload contains the event-specific data, if any.
		Payload any `json:"payload,omitempty"`
	}
)

// NewSink constructs a Pulse-backed stream sink. The Client field in opts is
// required; StreamID and MarshalEnvelope default to the built-in
// implementations if not provided.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	cfg := sinkOptions{
		streamID:        defaultStreamID,
		marshalEnvelope: defaultMarshal,
	}
	if opts.StreamID != nil {
		cfg.streamID = opts.StreamID
	}
	if opts.MarshalEnvelope != nil {
		cfg.marshalEnvelope = opts.MarshalEnvelope
	}
	return &Sink{client: opts.Client, opts: cfg}, nil
}

// Send publishes the event to the derived Pulse stream.
func (s *Sink) Send(ctx context.Context, event stream.Event) error {
	streamID, err := s.opts.streamID(event)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	env := envelope{
		Type:      string(event.Type()),
		SessionID: event.SessionID(),
		Timestamp: time.Now().UTC(),
		Payload:   event.Payload(),
	}
	payload, err := s.opts.marshalEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := handle.Add(ctx, env.Type, payload); err != nil {
		return err
	}
	return nil
}

// Close releases resources owned by the sink. This delegates to the Pulse
// client, which may or may not close the Redis connection depending on the
// implementation.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Destroy removes the session's stream and all buffered events. Call it after
// deleting a session so nothing of the walkthrough remains readable.
func (s *Sink) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	handle, err := s.client.Stream(sessionStreamID(sessionID))
	if err != nil {
		return err
	}
	return handle.Destroy(ctx)
}

func sessionStreamID(sessionID string) string {
	return fmt.Sprintf("guide/%s", sessionID)
}

// defaultStreamID derives the Pulse stream name from the event's session ID.
func defaultStreamID(event stream.Event) (string, error) {
	if event.SessionID() == "" {
		return "", errors.New("stream event missing session id")
	}
	return sessionStreamID(event.SessionID()), nil
}

func defaultMarshal(env envelope) ([]byte, error) {
	return json.Marshal(env)
}
