package audit

import (
	"context"
	"errors"
	"sync"
)

// ChannelSink buffers events on a channel for in-process consumers,
// primarily tests and the embedded API event feed.
type ChannelSink struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

// Publish delivers the event to the channel, blocking until there is room
// or the context is cancelled.
func (s *ChannelSink) Publish(ctx context.Context, event Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("sink closed")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- event:
		return nil
	}
}

// Events exposes the consumer side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close closes the channel. Publish after Close returns an error.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	s.mu.Unlock()
	return nil
}

var _ Publisher = (*ChannelSink)(nil)
