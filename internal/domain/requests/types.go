package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusPlayed   Status = "PLAYED"
)

// SongRequest is the slice of the request-management collaborator the
// payment engine needs: enough to resolve a paid target and to observe
// the rejection that triggers a refund.
type SongRequest struct {
	ID        uuid.UUID `json:"id"`
	DJID      uuid.UUID `json:"dj_id"`
	PayerID   uuid.UUID `json:"payer_id"`
	SongTitle string    `json:"song_title"`
	Message   *string   `json:"message,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*SongRequest, error)

	// MarkRejected flips the request to REJECTED and reports whether this
	// call performed the transition, so duplicate rejection events can be
	// recognized upstream.
	MarkRejected(ctx context.Context, id uuid.UUID) (bool, error)
}
