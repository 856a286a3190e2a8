package stream

import (
	"context"
	"errors"
	"sync"
)

// ChanSink is a Sink backed by a buffered channel. Transports drain Events
// from the channel and frame them for their wire protocol (SSE, WebSocket);
// tests use it to capture emitted events in order.
//
// Send blocks when the buffer is full, which provides natural backpressure
// from slow consumers, and fails once the sink is closed or the context is
// canceled. Consumer disconnection is modeled by closing the sink; server-side
// session state is unaffected.
type ChanSink struct {
	ch     chan Event
	closed chan struct{}
	once   sync.Once
}

// NewChanSink returns a channel sink with the given buffer size.
func NewChanSink(size int) *ChanSink {
	return &ChanSink{
		ch:     make(chan Event, size),
		closed: make(chan struct{}),
	}
}

// Events returns the receive side of the sink. The channel is never closed;
// consumers select on Done to observe shutdown. Events buffered before Close
// remain readable until drained.
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

// Done is closed when the sink has been closed.
func (s *ChanSink) Done() <-chan struct{} {
	return s.closed
}

// Send implements Sink.
func (s *ChanSink) Send(ctx context.Context, event Event) error {
	if event == nil {
		return errors.New("event is required")
	}
	select {
	case <-s.closed:
		return errors.New("sink is closed")
	default:
	}
	select {
	case s.ch <- event:
		return nil
	case <-s.closed:
		return errors.New("sink is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Sink. Idempotent.
func (s *ChanSink) Close(context.Context) error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
