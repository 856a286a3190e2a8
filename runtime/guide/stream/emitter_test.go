package stream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Send(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func (s *captureSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]EventType, len(s.events))
	for i, ev := range s.events {
		types[i] = ev.Type()
	}
	return types
}

func TestEmitterSectionFraming(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	em, err := NewEmitter(sink, "s1", "", nil)
	require.NoError(t, err)

	require.NoError(t, em.SectionStart(ctx, "Overview"))
	require.NoError(t, em.Chunk(ctx, "Overview", "hello "))
	require.NoError(t, em.Chunk(ctx, "Overview", "world"))
	require.NoError(t, em.SectionComplete(ctx, "Overview"))

	assert.Equal(t, []EventType{
		EventSectionStart,
		EventChunk,
		EventChunk,
		EventSectionComplete,
	}, sink.types())
}

func TestEmitterRejectsChunkOutsideSection(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	em, err := NewEmitter(sink, "s1", "", nil)
	require.NoError(t, err)

	err = em.Chunk(ctx, "Overview", "orphan")
	assert.ErrorIs(t, err, ErrSectionNotOpen)
	// The violating event is rejected, not delivered.
	assert.Empty(t, sink.types())
}

func TestEmitterRejectsOverlappingSections(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	em, err := NewEmitter(sink, "s1", "", nil)
	require.NoError(t, err)

	require.NoError(t, em.SectionStart(ctx, "Overview"))
	assert.ErrorIs(t, em.SectionStart(ctx, "Approach"), ErrSectionOpen)
	assert.ErrorIs(t, em.Chunk(ctx, "Approach", "x"), ErrSectionNotOpen)
	assert.ErrorIs(t, em.SectionComplete(ctx, "Approach"), ErrSectionNotOpen)

	// The open section is unaffected by the rejections.
	require.NoError(t, em.Chunk(ctx, "Overview", "still fine"))
	require.NoError(t, em.SectionComplete(ctx, "Overview"))
	assert.Equal(t, []EventType{
		EventSectionStart,
		EventChunk,
		EventSectionComplete,
	}, sink.types())
}

func TestEmitterRestoresOpenSection(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	// A resumed turn continues the section that was open when it suspended,
	// without a fresh section_start.
	em, err := NewEmitter(sink, "s1", "Approach", nil)
	require.NoError(t, err)

	assert.Equal(t, "Approach", em.OpenSection())
	require.NoError(t, em.Chunk(ctx, "Approach", "more"))
	require.NoError(t, em.SectionComplete(ctx, "Approach"))
	assert.Equal(t, []EventType{EventChunk, EventSectionComplete}, sink.types())
}

func TestEmitterRequiresSinkAndSession(t *testing.T) {
	_, err := NewEmitter(nil, "s1", "", nil)
	require.Error(t, err)
	_, err = NewEmitter(&captureSink{}, "", "", nil)
	require.Error(t, err)
}

func TestChanSinkDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	sink := NewChanSink(4)

	require.NoError(t, sink.Send(ctx, NewChunk("s1", "Overview", "a")))
	require.NoError(t, sink.Send(ctx, NewChunk("s1", "Overview", "b")))

	first := <-sink.Events()
	second := <-sink.Events()
	assert.Equal(t, "a", first.(*Chunk).Data.Text)
	assert.Equal(t, "b", second.(*Chunk).Data.Text)
}

func TestChanSinkCloseUnblocksAndRejects(t *testing.T) {
	ctx := context.Background()
	sink := NewChanSink(0)

	blocked := make(chan error, 1)
	go func() {
		blocked <- sink.Send(ctx, NewChunk("s1", "Overview", "x"))
	}()

	require.NoError(t, sink.Close(ctx))
	assert.Error(t, <-blocked)
	assert.Error(t, sink.Send(ctx, NewChunk("s1", "Overview", "y")))
	// Close is idempotent.
	require.NoError(t, sink.Close(ctx))

	select {
	case <-sink.Done():
	default:
		t.Fatal("Done not signaled after Close")
	}
}

func TestChoiceRequiredWireFormat(t *testing.T) {
	ev := NewChoiceRequired("s1", ChoiceRequiredPayload{
		ChoiceID: "c1",
		Question: "Which library?",
		Options: []ChoiceOptionPayload{
			{ID: "a", Label: "A", Description: "token bucket"},
		},
		AllowCustom: true,
		SkipAllowed: true,
	})

	raw, err := json.Marshal(ev.Payload())
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	// Established consumers depend on these exact key names.
	for _, key := range []string{"choice_id", "question", "options", "allow_custom", "skip_allowed"} {
		assert.Contains(t, got, key)
	}
	// research_hint is omitted when empty.
	assert.NotContains(t, got, "research_hint")

	opt := got["options"].([]any)[0].(map[string]any)
	assert.Equal(t, "a", opt["id"])
	assert.Equal(t, "A", opt["label"])
	assert.Equal(t, "token bucket", opt["description"])
}

func TestRestoredStepsWireFormat(t *testing.T) {
	ev := NewRestoredSteps("s1", RestoredStepsPayload{
		Steps: []RestoredStepPayload{
			{StepNumber: 1, Title: "Install", Complete: true},
			{StepNumber: 2, Title: "Configure"},
		},
		CurrentStep: 2,
	})

	raw, err := json.Marshal(ev.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"steps": [
			{"step_number": 1, "title": "Install", "complete": true},
			{"step_number": 2, "title": "Configure", "complete": false}
		],
		"current_step": 2
	}`, string(raw))
}
