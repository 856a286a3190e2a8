package pulse

import (
	"context"
	"errors"

	clientspulse "guidewalk.dev/guidewalk/features/guide/stream/pulse/clients/pulse"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

// GuideStreams wires a caller-provided Pulse client into the guide runtime.
// It owns a publishing sink (passed to the driver's Run/Resume/Respond calls)
// and can spawn subscribers that reuse the same client so services do not
// need to manage multiple Pulse connections.
type GuideStreams struct {
	sink   *Sink
	client clientspulse.Client
}

// GuideStreamsOptions configures the helper returned by NewGuideStreams.
type GuideStreamsOptions struct {
	// Client is the Pulse client used for both publishing and subscribing.
	// It is required and typically built via
	// features/guide/stream/pulse/clients/pulse.
	Client clientspulse.Client
	// Sink holds optional overrides for the publishing sink (stream ID
	// derivation, marshaling). Leave zero-valued for defaults.
	Sink Options
}

// NewGuideStreams constructs helpers for publishing guide session events to
// Pulse and subscribing to the resulting streams. Callers pass the returned
// sink to the driver and keep the helper around to create subscribers (e.g.,
// SSE fan-out) later on.
func NewGuideStreams(opts GuideStreamsOptions) (*GuideStreams, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	sinkOpts := opts.Sink
	sinkOpts.Client = opts.Client
	sink, err := NewSink(sinkOpts)
	if err != nil {
		return nil, err
	}
	return &GuideStreams{sink: sink, client: opts.Client}, nil
}

// Sink exposes the publishing sink so callers can pass it to the driver.
func (g *GuideStreams) Sink() stream.Sink {
	return g.sink
}

// NewSubscriber constructs a Pulse-backed subscriber that reuses the helper's
// client. This keeps stream publishing and consumption on the same Redis
// connection pool.
func (g *GuideStreams) NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	opts.Client = g.client
	return NewSubscriber(opts)
}

// Destroy removes a session's stream after the session is deleted.
func (g *GuideStreams) Destroy(ctx context.Context, sessionID string) error {
	return g.sink.Destroy(ctx, sessionID)
}

// Close shuts down the publishing sink. Call this during service shutdown
// after all subscribers have been canceled.
func (g *GuideStreams) Close(ctx context.Context) error {
	return g.sink.Close(ctx)
}
