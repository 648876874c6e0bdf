// Package stream fans out access-event summaries to live audit monitors.
// Events carry outcomes only, never payloads, so the monitor surface cannot
// leak PHI even to an authorized admin session.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
)

// AccessEvent is the monitor-safe summary of one audit entry.
type AccessEvent struct {
	Time         time.Time `json:"time"`
	Action       string    `json:"action"`
	ActorEmail   string    `json:"actor_email,omitempty"`
	ResourceKind string    `json:"resource_kind,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	StatusCode   int       `json:"status_code"`
	Success      bool      `json:"success"`
}

// FromEntry reduces an audit entry to its monitor summary.
func FromEntry(e audit.Entry) AccessEvent {
	return AccessEvent{
		Time:         e.OccurredAt,
		Action:       string(e.Action),
		ActorEmail:   e.ActorEmail,
		ResourceKind: e.ResourceKind,
		ResourceID:   e.ResourceID,
		StatusCode:   e.StatusCode,
		Success:      e.Success,
	}
}

// Stream fan-outs access events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan AccessEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan AccessEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan AccessEvent {
	ch := make(chan AccessEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt AccessEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
