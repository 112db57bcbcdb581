package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Refund compensates a request payment whose song request was rejected
// after the payer had already been charged. request_payment_id is unique:
// a payment can be refunded at most once.
type Refund struct {
	ID               uuid.UUID  `json:"id"`
	RequestPaymentID uuid.UUID  `json:"request_payment_id"`
	Amount           float64    `json:"amount"`
	Reason           string     `json:"reason"`
	Status           Status     `json:"status"`
	RefundMethod     string     `json:"refund_method"`
	TransactionID    *string    `json:"transaction_id,omitempty"`
	InitiatedAt      time.Time  `json:"initiated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
}

type Store interface {
	Create(ctx context.Context, r *Refund) (*Refund, error)
	GetByRequestPaymentID(ctx context.Context, paymentID uuid.UUID) (*Refund, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, transactionID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
