package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	clientspulse "guidewalk.dev/guidewalk/features/guide/stream/pulse/clients/pulse"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

type fakeClient struct {
	stream    func(name string, opts ...streamopts.Stream) (clientspulse.Stream, error)
	closeFunc func(ctx context.Context) error
}

func (c *fakeClient) Stream(name string, opts ...streamopts.Stream) (clientspulse.Stream, error) {
	return c.stream(name, opts...)
}

func (c *fakeClient) Close(ctx context.Context) error {
	if c.closeFunc == nil {
		return nil
	}
	return c.closeFunc(ctx)
}

type fakeStream struct {
	add     func(ctx context.Context, event string, payload []byte) (string, error)
	newSink func(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error)
	destroy func(ctx context.Context) error
}

func (s *fakeStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	return s.add(ctx, event, payload)
}

func (s *fakeStream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error) {
	return s.newSink(ctx, name, opts...)
}

func (s *fakeStream) Destroy(ctx context.Context) error {
	return s.destroy(ctx)
}

type fakeSink struct {
	subscribe func() <-chan *streaming.Event
	ack       func(ctx context.Context, evt *streaming.Event) error
}

func (s *fakeSink) Subscribe() <-chan *streaming.Event { return s.subscribe() }

func (s *fakeSink) Ack(ctx context.Context, evt *streaming.Event) error { return s.ack(ctx, evt) }

func (s *fakeSink) Close(context.Context) {}

func TestSendPublishesEnvelope(t *testing.T) {
	var published []byte
	str := &fakeStream{
		add: func(_ context.Context, event string, payload []byte) (string, error) {
			require.Equal(t, string(stream.EventChunk), event)
			published = payload
			return "1-0", nil
		},
	}
	cli := &fakeClient{stream: func(name string, _ ...streamopts.Stream) (clientspulse.Stream, error) {
		require.Equal(t, "guide/sess-1", name)
		return str, nil
	}}

	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), stream.NewChunk("sess-1", "Overview", "hello")))

	var env envelope
	require.NoError(t, json.Unmarshal(published, &env))
	require.Equal(t, "chunk", env.Type)
	require.Equal(t, "sess-1", env.SessionID)
	require.False(t, env.Timestamp.IsZero())
	body, ok := env.Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Overview", body["section"])
	require.Equal(t, "hello", body["text"])
}

func TestCustomStreamID(t *testing.T) {
	str := &fakeStream{
		add: func(context.Context, string, []byte) (string, error) { return "1-0", nil },
	}
	cli := &fakeClient{stream: func(name string, _ ...streamopts.Stream) (clientspulse.Stream, error) {
		require.Equal(t, "custom/sess-1", name)
		return str, nil
	}}

	sink, err := NewSink(Options{
		Client: cli,
		StreamID: func(e stream.Event) (string, error) {
			return "custom/" + e.SessionID(), nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), stream.NewProgressSaved("sess-1", "drafting")))
}

func TestSendRequiresSessionID(t *testing.T) {
	sink, err := NewSink(Options{Client: &fakeClient{}})
	require.NoError(t, err)
	err = sink.Send(context.Background(), stream.NewProgressSaved("", "drafting"))
	require.EqualError(t, err, "stream event missing session id")
}

func TestStreamCreationError(t *testing.T) {
	cli := &fakeClient{stream: func(string, ...streamopts.Stream) (clientspulse.Stream, error) {
		return nil, errors.New("boom")
	}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	err = sink.Send(context.Background(), stream.NewProgressSaved("sess-1", "drafting"))
	require.EqualError(t, err, "boom")
}

func TestAddError(t *testing.T) {
	str := &fakeStream{
		add: func(context.Context, string, []byte) (string, error) {
			return "", errors.New("add-failed")
		},
	}
	cli := &fakeClient{stream: func(string, ...streamopts.Stream) (clientspulse.Stream, error) {
		return str, nil
	}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	err = sink.Send(context.Background(), stream.NewProgressSaved("sess-1", "drafting"))
	require.EqualError(t, err, "add-failed")
}

func TestDestroyRemovesSessionStream(t *testing.T) {
	destroyed := false
	str := &fakeStream{
		destroy: func(context.Context) error {
			destroyed = true
			return nil
		},
	}
	cli := &fakeClient{stream: func(name string, _ ...streamopts.Stream) (clientspulse.Stream, error) {
		require.Equal(t, "guide/sess-1", name)
		return str, nil
	}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.NoError(t, sink.Destroy(context.Background(), "sess-1"))
	require.True(t, destroyed)
}

func TestCloseDelegates(t *testing.T) {
	closed := false
	cli := &fakeClient{closeFunc: func(context.Context) error {
		closed = true
		return nil
	}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
	require.True(t, closed)
}
