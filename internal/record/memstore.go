package record

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore keeps recordings in memory. It backs tests and DSN-less demo runs.
type MemStore struct {
	mu         sync.Mutex
	recordings map[string]*Recording
	feedback   map[string][]*Feedback
}

func NewMemStore() *MemStore {
	return &MemStore{
		recordings: make(map[string]*Recording),
		feedback:   make(map[string][]*Feedback),
	}
}

func (s *MemStore) Create(_ context.Context, rec *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recordings[rec.ID] = &cp
	return nil
}

func (s *MemStore) Find(_ context.Context, id string) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) List(_ context.Context, f Filter) ([]Recording, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Recording, 0, len(s.recordings))
	for _, rec := range s.recordings {
		if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
			continue
		}
		if f.Risk != "" && string(rec.Classification.RiskLevel) != f.Risk {
			continue
		}
		if !f.IncludeDeleted && rec.Status == StatusDeleted {
			continue
		}
		matched = append(matched, *rec)
	}
	// Ids are ULIDs, so id order is creation order; newest first.
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			return []Recording{}, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recordings[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = StatusDeleted
	rec.UpdatedAt = at
	return nil
}

func (s *MemStore) CreateFeedback(_ context.Context, fb *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fb
	cp.Notes = ""
	s.feedback[fb.RecordingID] = append(s.feedback[fb.RecordingID], &cp)
	return nil
}

func (s *MemStore) ListFeedback(_ context.Context, recordingID string) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fbs := s.feedback[recordingID]
	out := make([]Feedback, 0, len(fbs))
	for _, fb := range fbs {
		out = append(out, *fb)
	}
	// Trail reads oldest first.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*MemStore)(nil)
