package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RequestPayment is a confirmed charge for a song request. At most one
// exists per STK session (session_id is unique).
type RequestPayment struct {
	ID              uuid.UUID `json:"id"`
	SessionID       uuid.UUID `json:"session_id"`
	RequestID       uuid.UUID `json:"request_id"`
	PayerID         uuid.UUID `json:"payer_id"`
	PayerName       string    `json:"payer_name"`
	PhoneNumber     string    `json:"phone_number"`
	Amount          float64   `json:"amount"`
	ReceiptNumber   string    `json:"receipt_number"`
	TransactionDate time.Time `json:"transaction_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// TipPayment is a confirmed tip to a DJ, same uniqueness rules as
// RequestPayment.
type TipPayment struct {
	ID              uuid.UUID `json:"id"`
	SessionID       uuid.UUID `json:"session_id"`
	DJID            uuid.UUID `json:"dj_id"`
	PayerID         uuid.UUID `json:"payer_id"`
	PayerName       string    `json:"payer_name"`
	PhoneNumber     string    `json:"phone_number"`
	Amount          float64   `json:"amount"`
	ReceiptNumber   string    `json:"receipt_number"`
	TransactionDate time.Time `json:"transaction_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// Record is the merged API view over both payment kinds.
type Record struct {
	ID              uuid.UUID  `json:"id"`
	Type            string     `json:"type"` // REQUEST or TIP
	PayerName       string     `json:"payer_name"`
	PhoneNumber     string     `json:"phone_number"`
	Amount          float64    `json:"amount"`
	ReceiptNumber   string     `json:"receipt_number"`
	TransactionDate time.Time  `json:"transaction_date"`
	RequestID       *uuid.UUID `json:"request_id,omitempty"`
	DJID            *uuid.UUID `json:"dj_id,omitempty"`
}

// Earnings aggregates a DJ's confirmed income. Only completed payments
// contribute; pending or failed sessions never show up here.
type Earnings struct {
	DJID         uuid.UUID `json:"dj_id"`
	RequestTotal float64   `json:"request_total"`
	TipTotal     float64   `json:"tip_total"`
	Total        float64   `json:"total"`
}

type Store interface {
	CreateRequestPayment(ctx context.Context, p *RequestPayment) (*RequestPayment, error)
	CreateTipPayment(ctx context.Context, p *TipPayment) (*TipPayment, error)

	GetRequestPaymentByRequestID(ctx context.Context, requestID uuid.UUID) (*RequestPayment, error)
	GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRecords(ctx context.Context, limit int) ([]*Record, error)

	EarningsForDJ(ctx context.Context, djID uuid.UUID) (*Earnings, error)
}
