package record

import (
	"context"
	"time"
)

// Filter narrows a recording list. Zero values mean "any".
type Filter struct {
	OwnerID        string
	Risk           string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Store persists recordings and feedback. Payloads are write-once: there is
// deliberately no way to replace EncryptedPayload after Create.
type Store interface {
	Create(ctx context.Context, rec *Recording) error
	Find(ctx context.Context, id string) (*Recording, error)
	List(ctx context.Context, f Filter) ([]Recording, int, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error

	CreateFeedback(ctx context.Context, fb *Feedback) error
	ListFeedback(ctx context.Context, recordingID string) ([]Feedback, error)
}
