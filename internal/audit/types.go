// Package audit records every request that touches protected health data.
// Entries are append-only: nothing in the service updates or deletes them.
package audit

import (
	"context"
	"time"
)

// Action is the closed vocabulary of auditable operations.
type Action string

const (
	ActionLogin       Action = "login"
	ActionLoginFailed Action = "login-failed"
	ActionLogout      Action = "logout"

	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	ActionAnalyze    Action = "analyze"
	ActionViewReport Action = "view-report"
	ActionExport     Action = "export"

	ActionAccessDenied     Action = "access-denied"
	ActionPermissionChange Action = "permission-change"
)

// Valid reports whether the action belongs to the vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLoginFailed, ActionLogout,
		ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionAnalyze, ActionViewReport, ActionExport,
		ActionAccessDenied, ActionPermissionChange:
		return true
	}
	return false
}

// Entry is one audited request. Actor fields stay empty for anonymous or
// failed authentication. The metadata bag carries small string facts like a
// failure reason; it must never carry PHI.
type Entry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`

	ActorID    string `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`
	ActorRole  string `json:"actor_role,omitempty"`

	Action       Action `json:"action"`
	ResourceKind string `json:"resource_kind,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	Method    string `json:"method"`
	Path      string `json:"path"`
	Origin    string `json:"origin,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	StatusCode int  `json:"status_code"`
	Success    bool `json:"success"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Filter narrows a List call. Zero values mean "any". Limit <= 0 returns
// everything that matches.
type Filter struct {
	ActorID      string
	Action       Action
	ResourceKind string
	ResourceID   string
	Since        time.Time
	Until        time.Time
	Limit        int
	Offset       int
}

// Store persists audit entries. List returns entries newest first along with
// the total match count so callers can paginate.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, int, error)
}
