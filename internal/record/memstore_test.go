package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ids"
)

func seedRecording(t *testing.T, s *MemStore, owner string, risk ecg.RiskLevel) *Recording {
	t.Helper()
	rec := &Recording{
		ID:      ids.New(),
		OwnerID: owner,
		Classification: Classification{
			Diagnosis: "Normal Sinus Rhythm",
			RiskLevel: risk,
		},
		Status:           StatusActive,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
		EncryptedPayload: "blob",
	}
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestMemStoreReturnsCopies(t *testing.T) {
	store := NewMemStore()
	rec := seedRecording(t, store, "u1", ecg.RiskLow)

	got, err := store.Find(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got.Status = StatusDeleted
	got.Classification.Diagnosis = "mutated"

	again, err := store.Find(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if again.Status != StatusActive || again.Classification.Diagnosis != "Normal Sinus Rhythm" {
		t.Fatal("store row mutated through a returned copy")
	}
}

func TestMemStoreListFiltersAndPaginates(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	seedRecording(t, store, "u1", ecg.RiskLow)
	r2 := seedRecording(t, store, "u1", ecg.RiskHigh)
	r3 := seedRecording(t, store, "u2", ecg.RiskLow)
	if err := store.SoftDelete(ctx, r3.ID, time.Now().UTC()); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	recs, total, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(recs) != 2 {
		t.Fatalf("default list = %d/%d, want 2", len(recs), total)
	}
	if recs[0].ID != r2.ID {
		t.Fatal("list is not newest first")
	}

	_, total, _ = store.List(ctx, Filter{OwnerID: "u1"})
	if total != 2 {
		t.Fatalf("owner filter = %d, want 2", total)
	}
	_, total, _ = store.List(ctx, Filter{Risk: "High"})
	if total != 1 {
		t.Fatalf("risk filter = %d, want 1", total)
	}
	_, total, _ = store.List(ctx, Filter{IncludeDeleted: true})
	if total != 3 {
		t.Fatalf("include deleted = %d, want 3", total)
	}

	recs, total, _ = store.List(ctx, Filter{IncludeDeleted: true, Limit: 2, Offset: 2})
	if total != 3 || len(recs) != 1 {
		t.Fatalf("page = %d rows of %d, want 1 of 3", len(recs), total)
	}
	recs, total, _ = store.List(ctx, Filter{Offset: 10})
	if total != 2 || len(recs) != 0 {
		t.Fatalf("past-end page = %d rows of %d", len(recs), total)
	}
}

func TestMemStoreSoftDeleteUnknown(t *testing.T) {
	store := NewMemStore()
	err := store.SoftDelete(context.Background(), "missing", time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestMemStoreFeedbackNeverKeepsClearNotes(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	rec := seedRecording(t, store, "u1", ecg.RiskMedium)

	first := &Feedback{
		ID:             ids.New(),
		RecordingID:    rec.ID,
		ClinicianID:    "c1",
		TrueDiagnosis:  "AFib",
		Notes:          "should not persist",
		EncryptedNotes: "sealed-1",
		CreatedAt:      time.Now().UTC(),
	}
	second := &Feedback{
		ID:            ids.New(),
		RecordingID:   rec.ID,
		ClinicianID:   "c2",
		TrueDiagnosis: "Normal Sinus Rhythm",
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.CreateFeedback(ctx, first); err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}
	if err := store.CreateFeedback(ctx, second); err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}

	fbs, err := store.ListFeedback(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(fbs) != 2 {
		t.Fatalf("got %d feedback rows, want 2", len(fbs))
	}
	if fbs[0].ID != first.ID || fbs[1].ID != second.ID {
		t.Fatal("trail is not oldest first")
	}
	if fbs[0].Notes != "" {
		t.Fatalf("clear notes persisted: %q", fbs[0].Notes)
	}
	if fbs[0].EncryptedNotes != "sealed-1" {
		t.Fatalf("sealed notes lost: %q", fbs[0].EncryptedNotes)
	}

	if none, err := store.ListFeedback(ctx, "missing"); err != nil || len(none) != 0 {
		t.Fatalf("unknown recording trail = %v, %v", none, err)
	}
}
