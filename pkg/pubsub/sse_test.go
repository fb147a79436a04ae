package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
	return Event{}
}

func expectQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Errorf("Received unexpected event version %d", ev.Version)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReplayAll(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicAnalysis, TopicConfig{BufferSize: 3, ReplayAll: true})

	for i := 1; i <= 5; i++ {
		if err := pub.Publish(TopicAnalysis, "scanning", AnalysisStatus{Step: i, Total: 5}); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicAnalysis)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Only the last three survive the buffer
	for want := 3; want <= 5; want++ {
		if ev := receive(t, sub); ev.Version != want {
			t.Errorf("Expected version %d, got %d", want, ev.Version)
		}
	}
	expectQuiet(t, sub)
}

func TestReplayLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicReport, TopicConfig{BufferSize: 5})

	for i := 1; i <= 3; i++ {
		if err := pub.Publish(TopicReport, "updated", ReportStatus{Pages: i}); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicReport)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ev := receive(t, sub)
	if ev.Version != 3 {
		t.Errorf("Expected version 3, got %d", ev.Version)
	}
	var status ReportStatus
	if err := json.Unmarshal(ev.Data, &status); err != nil || status.Pages != 3 {
		t.Errorf("Expected payload with 3 pages, got %s (%v)", ev.Data, err)
	}
	expectQuiet(t, sub)
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	if err := pub.Publish(TopicAnalysis, "ready", AnalysisStatus{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicAnalysis)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	expectQuiet(t, sub)

	if err := pub.Publish(TopicAnalysis, "ready", AnalysisStatus{}); err != nil {
		t.Fatal(err)
	}
	if ev := receive(t, sub); ev.Version != 2 || ev.Type != "ready" {
		t.Errorf("Unexpected live event: %+v", ev)
	}
}

func TestSubscriptionClosedByContext(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, TopicReport)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("Expected the channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	if n := pub.Subscribers(TopicReport); n != 0 {
		t.Errorf("Expected no subscribers left, got %d", n)
	}

	// Publishing after the subscriber left must not panic
	if err := pub.Publish(TopicReport, "updated", ReportStatus{}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestClosedPublisher(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	if err := pub.Publish(TopicReport, "updated", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() error = %v, want ErrClosed", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicReport); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() error = %v, want ErrClosed", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	ev := Event{Topic: TopicReport, Type: "updated", Data: json.RawMessage(`{"pages":4}`), Version: 7}
	if err := WriteSSE(&buf, ev); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "event: report\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Errorf("Unexpected SSE frame: %q", out)
	}
	if !strings.Contains(out, `"version":7`) {
		t.Errorf("Frame should carry the version: %q", out)
	}
}
