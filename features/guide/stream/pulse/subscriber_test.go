package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	clientspulse "guidewalk.dev/guidewalk/features/guide/stream/pulse/clients/pulse"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
)

func TestSubscribeEmitsEvents(t *testing.T) {
	eventCh := make(chan *streaming.Event, 1)
	sinkFake := &fakeSink{
		subscribe: func() <-chan *streaming.Event { return eventCh },
		ack: func(_ context.Context, evt *streaming.Event) error {
			require.Equal(t, "1-0", evt.ID)
			return nil
		},
	}
	streamFake := &fakeStream{
		newSink: func(_ context.Context, name string, _ ...streamopts.Sink) (clientspulse.Sink, error) {
			require.Equal(t, "guidewalk_subscriber", name)
			return sinkFake, nil
		},
	}
	client := &fakeClient{stream: func(name string, _ ...streamopts.Stream) (clientspulse.Stream, error) {
		require.Equal(t, "guide/sess-1", name)
		return streamFake, nil
	}}

	sub, err := NewSubscriber(SubscriberOptions{Client: client, Buffer: 2})
	require.NoError(t, err)

	events, errs, cancel, err := sub.Subscribe(context.Background(), "sess-1")
	require.NoError(t, err)
	defer cancel()

	payload, _ := json.Marshal(map[string]any{
		"type":       "chunk",
		"session_id": "sess-1",
		"timestamp":  time.Now(),
		"payload":    map[string]string{"section": "Overview", "text": "hi"},
	})
	eventCh <- &streaming.Event{ID: "1-0", Payload: payload}
	close(eventCh)

	e := <-events
	require.Equal(t, stream.EventChunk, e.Type())
	require.Equal(t, "sess-1", e.SessionID())
	body := make(map[string]string)
	require.NoError(t, json.Unmarshal(e.Payload().(json.RawMessage), &body))
	require.Equal(t, "hi", body["text"])
	require.Empty(t, errs)
}

func TestSubscribeDecoderError(t *testing.T) {
	eventCh := make(chan *streaming.Event, 1)
	sinkFake := &fakeSink{
		subscribe: func() <-chan *streaming.Event { return eventCh },
		ack:       func(context.Context, *streaming.Event) error { return nil },
	}
	streamFake := &fakeStream{
		newSink: func(context.Context, string, ...streamopts.Sink) (clientspulse.Sink, error) {
			return sinkFake, nil
		},
	}
	client := &fakeClient{stream: func(string, ...streamopts.Stream) (clientspulse.Stream, error) {
		return streamFake, nil
	}}

	sub, err := NewSubscriber(SubscriberOptions{
		Client: client,
		Decoder: func([]byte) (stream.Event, error) {
			return nil, errors.New("decode error")
		},
	})
	require.NoError(t, err)

	events, errs, cancel, err := sub.Subscribe(context.Background(), "sess-1")
	require.NoError(t, err)
	defer cancel()
	eventCh <- &streaming.Event{Payload: []byte("{}")}
	close(eventCh)

	require.Empty(t, events)
	require.EqualError(t, <-errs, "pulse decode payload: decode error")
}

func TestSubscribeRequiresSessionID(t *testing.T) {
	sub, err := NewSubscriber(SubscriberOptions{Client: &fakeClient{}})
	require.NoError(t, err)
	_, _, _, err = sub.Subscribe(context.Background(), "")
	require.Error(t, err)
}

func TestSubscriberRequiresClient(t *testing.T) {
	_, err := NewSubscriber(SubscriberOptions{})
	require.Error(t, err)
}
