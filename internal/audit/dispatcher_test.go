package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}

	// Every operation on the nil dispatcher is a no-op.
	d.Emit(context.Background(), Event{Action: "login"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops")
	}
}

func TestDispatcherForwardsToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		Action:    "login",
		Subject:   "u1",
		Success:   true,
		Origin:    "203.0.113.7",
	})

	select {
	case got := <-sink.Events():
		if got.Action != "login" || got.Subject != "u1" || !got.Success {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(32)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 32}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Action: "refresh"})
	}
	d.Close()

	if got := len(sink.Events()); got != 10 {
		t.Fatalf("expected 10 drained events, got %d", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that is never consumed, so the worker wedges on delivery.
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 16; i++ {
		d.Emit(context.Background(), Event{Action: "login"})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected drops under buffer pressure")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Unwedge the worker so Close can drain and return.
	go func() {
		for range sink.Events() {
		}
	}()
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Action: "logout", Subject: "u1", Success: true})

	line := strings.TrimSpace(buf.String())
	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("invalid JSON line %q: %v", line, err)
	}
	if got.Action != "logout" || got.Subject != "u1" {
		t.Fatalf("unexpected decoded event %+v", got)
	}
}
