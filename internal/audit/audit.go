// Package audit provides the append-only event stream that records every
// committed vault state transition. The in-memory ordered log is the source
// of truth; publishers fan events out to external sinks (Redis streams,
// RabbitMQ, MySQL) for indexers and off-chain agents.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"AegisVault/pkg/logger"
)

// Event is one committed state transition. Seq is assigned by the log and
// strictly increases with no gaps.
type Event struct {
	Seq     uint64            `json:"seq"`
	Type    string            `json:"type"`
	Actor   string            `json:"actor"`
	TraceID string            `json:"trace_id"`
	At      int64             `json:"at"`
	Data    map[string]string `json:"data,omitempty"`
}

// Publisher forwards committed events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Log is the ordered in-memory event journal. Appends happen while the
// vault mutex is held, so sequence order matches commit order.
type Log struct {
	mu         sync.RWMutex
	events     []Event
	nextSeq    uint64
	publishers []Publisher
	log        *slog.Logger
}

// NewLog creates an event journal that forwards to the given publishers.
func NewLog(publishers ...Publisher) *Log {
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &Log{nextSeq: 1, publishers: active, log: logger.L()}
}

// Append records an event and forwards it to every publisher. The journal
// entry is never dropped; publisher failures are logged and surfaced to
// alerting by the caller's error policy, not by losing the event.
func (l *Log) Append(ctx context.Context, eventType, actor string, data map[string]string) Event {
	l.mu.Lock()
	event := Event{
		Seq:     l.nextSeq,
		Type:    eventType,
		Actor:   actor,
		TraceID: uuid.NewString(),
		At:      time.Now().Unix(),
		Data:    cloneData(data),
	}
	l.nextSeq++
	l.events = append(l.events, event)
	publishers := l.publishers
	l.mu.Unlock()

	for _, p := range publishers {
		if err := p.Publish(ctx, event); err != nil {
			l.log.Error("audit publish failed",
				slog.String("type", event.Type),
				slog.Uint64("seq", event.Seq),
				slog.Any("error", err),
			)
		}
	}
	return event
}

// Events returns all events with Seq > sinceSeq, oldest first. Indexers
// use it to catch up after a disconnect.
func (l *Log) Events(sinceSeq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	// Seq is dense and 1-based, so the slice offset is direct.
	if sinceSeq >= uint64(len(l.events)) {
		return nil
	}
	out := make([]Event, len(l.events)-int(sinceSeq))
	copy(out, l.events[sinceSeq:])
	return out
}

// Len reports the number of journaled events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Close shuts down all publishers.
func (l *Log) Close() error {
	l.mu.Lock()
	publishers := l.publishers
	l.publishers = nil
	l.mu.Unlock()

	var firstErr error
	for _, p := range publishers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func cloneData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	cloned := make(map[string]string, len(data))
	for k, v := range data {
		cloned[k] = v
	}
	return cloned
}
