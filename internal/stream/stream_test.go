package stream

import (
	"context"
	"testing"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	evt := AccessEvent{
		Time:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Action:       "analyze",
		ActorEmail:   "ada@example.org",
		ResourceKind: "recording",
		ResourceID:   "r1",
		StatusCode:   201,
		Success:      true,
	}
	s.Publish(evt)

	for name, ch := range map[string]<-chan AccessEvent{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got != evt {
				t.Fatalf("%s received %+v, want %+v", name, got, evt)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s received nothing", name)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := s.Subscribe(ctx)
	for i := 0; i < 20; i++ {
		s.Publish(AccessEvent{StatusCode: 200 + i})
	}

	// The buffer holds 16; the rest must have been dropped, not queued.
	received := 0
	for {
		select {
		case <-slow:
			received++
		default:
			if received != 16 {
				t.Fatalf("received %d events, want 16", received)
			}
			return
		}
	}
}

func TestSubscriberRemovedOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("received an event on a cancelled subscription")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after removal must not panic or block.
	s.Publish(AccessEvent{StatusCode: 200})
}

func TestFromEntry(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := audit.Entry{
		ID:         "01H",
		OccurredAt: at,
		ActorID:    "u1",
		ActorEmail: "ada@example.org",
		Action:     audit.ActionViewReport,

		ResourceKind: "recording",
		ResourceID:   "r1",
		Method:       "GET",
		Path:         "/v1/recordings/r1/report",
		RequestID:    "req-1",
		StatusCode:   200,
		Success:      true,
		Metadata:     map[string]string{"risk": "High"},
	}
	got := FromEntry(e)
	want := AccessEvent{
		Time:         at,
		Action:       "view-report",
		ActorEmail:   "ada@example.org",
		ResourceKind: "recording",
		ResourceID:   "r1",
		StatusCode:   200,
		Success:      true,
	}
	if got != want {
		t.Fatalf("FromEntry = %+v, want %+v", got, want)
	}
}
