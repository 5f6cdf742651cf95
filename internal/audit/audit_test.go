package audit

import (
	"context"
	"testing"
)

func TestLogAssignsDenseSequence(t *testing.T) {
	log := NewLog()
	ctx := context.Background()

	first := log.Append(ctx, "Deposited", "0xabc", map[string]string{"amount": "1000"})
	second := log.Append(ctx, "Withdrawn", "0xabc", nil)

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("sequence not dense: %d, %d", first.Seq, second.Seq)
	}
	if first.TraceID == "" || first.TraceID == second.TraceID {
		t.Fatalf("trace ids must be unique and non-empty")
	}
}

func TestLogReplayFromSequence(t *testing.T) {
	log := NewLog()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		log.Append(ctx, "Deposited", "0xabc", nil)
	}

	tail := log.Events(3)
	if len(tail) != 2 {
		t.Fatalf("expected 2 events after seq 3, got %d", len(tail))
	}
	if tail[0].Seq != 4 || tail[1].Seq != 5 {
		t.Fatalf("unexpected replay window: %d..%d", tail[0].Seq, tail[len(tail)-1].Seq)
	}
	if got := log.Events(5); got != nil {
		t.Fatalf("expected empty replay past the end, got %d events", len(got))
	}
}

func TestLogForwardsToPublishers(t *testing.T) {
	sink := NewChannelSink(4)
	log := NewLog(sink)
	ctx := context.Background()

	appended := log.Append(ctx, "CircuitBreakerTriggered", "guardian", nil)

	select {
	case got := <-sink.Events():
		if got.Seq != appended.Seq || got.Type != appended.Type {
			t.Fatalf("published event mismatch: %+v vs %+v", got, appended)
		}
	default:
		t.Fatalf("event was not forwarded to the sink")
	}
}

func TestLogSurvivesPublisherFailure(t *testing.T) {
	sink := NewChannelSink(1)
	_ = sink.Close()
	log := NewLog(sink)

	event := log.Append(context.Background(), "Deposited", "0xabc", nil)
	if event.Seq != 1 {
		t.Fatalf("journal append should succeed despite sink failure")
	}
	if log.Len() != 1 {
		t.Fatalf("journal lost the event")
	}
}

func TestChannelSinkCloseIsIdempotent(t *testing.T) {
	sink := NewChannelSink(1)
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := sink.Publish(context.Background(), Event{}); err == nil {
		t.Fatalf("publish after close should fail")
	}
}

func TestEventDataIsCopied(t *testing.T) {
	log := NewLog()
	data := map[string]string{"amount": "1"}
	event := log.Append(context.Background(), "Deposited", "0xabc", data)

	data["amount"] = "mutated"
	if log.Events(0)[0].Data["amount"] != "1" {
		t.Fatalf("journal shares caller's map")
	}
	_ = event
}
