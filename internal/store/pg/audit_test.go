package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/audit"
)

func TestAuditAppendInsertsEntry(t *testing.T) {
	store, mock := newMockStore(t)

	e := &audit.Entry{
		ID:         "01AUDIT",
		OccurredAt: time.Now().UTC(),
		ActorID:    "01USER",
		ActorEmail: "ada@example.com",
		ActorRole:  "user",
		Action:     audit.ActionAnalyze,
		Method:     "POST",
		Path:       "/v1/recordings/analyze",
		StatusCode: 201,
		Success:    true,
		Metadata:   map[string]string{"risk": "Low"},
	}

	mock.ExpectExec("insert into audit_entries").
		WithArgs(e.ID, e.OccurredAt, e.ActorID, e.ActorEmail, e.ActorRole,
			"analyze", "", "", "POST", "/v1/recordings/analyze", "", "", "",
			201, true, []byte(`{"risk":"Low"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Audit.Append(context.Background(), e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditListAppliesFiltersAndCount(t *testing.T) {
	store, mock := newMockStore(t)

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	occurred := since.Add(time.Hour)

	mock.ExpectQuery("select count(.+) from audit_entries where actor_id").
		WithArgs("01USER", "access-denied", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	mock.ExpectQuery("from audit_entries where actor_id").
		WithArgs("01USER", "access-denied", since, 5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "occurred_at", "actor_id", "actor_email", "actor_role",
			"action", "resource_kind", "resource_id", "method", "path", "origin",
			"user_agent", "request_id", "status_code", "success", "metadata",
		}).AddRow("01AUDIT", occurred, "01USER", "ada@example.com", "user",
			"access-denied", "audit", "", "GET", "/v1/audit", "10.0.0.1",
			"curl/8", "req-1", 403, false, []byte(`{"reason":"forbidden"}`)))

	entries, total, err := store.Audit.List(context.Background(), audit.Filter{
		ActorID: "01USER",
		Action:  audit.ActionAccessDenied,
		Since:   since,
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != audit.ActionAccessDenied || e.Success {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Metadata["reason"] != "forbidden" {
		t.Fatalf("metadata not decoded: %v", e.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
