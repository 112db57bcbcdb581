package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status of an STK push session. PENDING is the only non-terminal value;
// COMPLETED and FAILED are final and never overwritten.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TargetKind string

const (
	KindRequest TargetKind = "request"
	KindTip     TargetKind = "tip"
)

// Target is what the payer is paying for: a song request or a DJ tip,
// never both and never neither. The zero value is invalid; build one
// through ForRequest or ForTip.
type Target struct {
	kind      TargetKind
	requestID uuid.UUID
	djID      uuid.UUID
}

func ForRequest(requestID uuid.UUID) Target {
	return Target{kind: KindRequest, requestID: requestID}
}

func ForTip(djID uuid.UUID) Target {
	return Target{kind: KindTip, djID: djID}
}

func (t Target) Kind() TargetKind { return t.kind }

func (t Target) RequestID() (uuid.UUID, bool) {
	return t.requestID, t.kind == KindRequest
}

func (t Target) DJID() (uuid.UUID, bool) {
	return t.djID, t.kind == KindTip
}

// Session tracks one provider charge attempt from STK push to its terminal
// outcome. CheckoutRequestID is the provider-assigned idempotency key for
// the whole payment flow.
type Session struct {
	ID                uuid.UUID  `json:"id"`
	CheckoutRequestID string     `json:"checkout_request_id"`
	Target            Target     `json:"-"`
	PayerID           uuid.UUID  `json:"payer_id"`
	PhoneNumber       string     `json:"phone_number"`
	Amount            float64    `json:"amount"`
	Status            Status     `json:"status"`
	RetryCount        int        `json:"retry_count"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	ResultCode        *int       `json:"result_code,omitempty"`
	ResultDescription *string    `json:"result_description,omitempty"`
	ReceiptNumber     *string    `json:"receipt_number,omitempty"`
	TransactionDate   *time.Time `json:"transaction_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
}

type Store interface {
	Create(ctx context.Context, s *Session) (*Session, error)
	GetByCheckoutID(ctx context.Context, checkoutID string) (*Session, error)
	ListPending(ctx context.Context) ([]*Session, error)

	// MarkCompleted and MarkFailed are conditional updates: the transition
	// applies only while the session is still PENDING. They report whether
	// the row actually changed so callers can treat a lost race as a no-op.
	MarkCompleted(ctx context.Context, checkoutID, receiptNumber string, transactionDate time.Time) (bool, error)
	MarkFailed(ctx context.Context, checkoutID string, resultCode int, reason string) (bool, error)

	IncrementRetry(ctx context.Context, checkoutID string) error
}
