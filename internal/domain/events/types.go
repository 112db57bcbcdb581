package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the payment lifecycle events recorded in the audit trail.
type Type string

const (
	TypeInitiated        Type = "INITIATED"
	TypeStkPushSent      Type = "STK_PUSH_SENT"
	TypeProcessing       Type = "PROCESSING"
	TypeCallbackReceived Type = "CALLBACK_RECEIVED"
	TypeCompleted        Type = "COMPLETED"
	TypeFailed           Type = "FAILED"
	TypeCancelled        Type = "CANCELLED"
	TypeTimeout          Type = "TIMEOUT"
	TypeQuerySent        Type = "QUERY_SENT"
	TypeQueryResponse    Type = "QUERY_RESPONSE"
	TypeRetryAttempted   Type = "RETRY_ATTEMPTED"
)

// Entry is one row of the append-only payment audit trail, keyed by the
// provider checkout request id. Entries are never updated or deleted.
type Entry struct {
	ID                uuid.UUID      `json:"id"`
	CheckoutRequestID string         `json:"checkout_request_id"`
	EventType         Type           `json:"event_type"`
	EventTimestamp    time.Time      `json:"event_timestamp"`
	PaymentType       *string        `json:"payment_type,omitempty"` // REQUEST or TIP
	Amount            *float64       `json:"amount,omitempty"`
	PhoneNumber       *string        `json:"phone_number,omitempty"`
	ResultCode        *int           `json:"result_code,omitempty"`
	ResultDescription *string        `json:"result_description,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
	UserID            *uuid.UUID     `json:"user_id,omitempty"`
	DJID              *uuid.UUID     `json:"dj_id,omitempty"`
	RequestID         *uuid.UUID     `json:"request_id,omitempty"`
}

type Store interface {
	Append(ctx context.Context, e *Entry) error

	ListByCheckoutID(ctx context.Context, checkoutID string) ([]*Entry, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Entry, error)
	ListByDJ(ctx context.Context, djID uuid.UUID) ([]*Entry, error)
	ListByTimeRange(ctx context.Context, from, to time.Time) ([]*Entry, error)
	ListByType(ctx context.Context, t Type) ([]*Entry, error)
}
