// Package payflow drives the payment lifecycle: STK push initiation,
// callback settlement, reconciliation of stuck sessions and compensating
// refunds. All state lives in the stores; the types here are stateless
// coordinators safe for concurrent use.
package payflow

import (
	"context"

	"github.com/google/uuid"

	"spinwish/internal/domain/storage"
	"spinwish/internal/mpesa"
)

// Gateway is the slice of the M-Pesa client the engine needs. *mpesa.Client
// satisfies it; tests substitute fakes.
type Gateway interface {
	STKPush(ctx context.Context, phoneNumber string, amount float64, description string) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
	B2CPayout(ctx context.Context, phoneNumber string, amount float64, remarks string) (*mpesa.B2CResult, error)
}

// TxRunner runs a function inside a single database transaction spanning
// sessions, payments and refunds. *storage.Container satisfies it.
type TxRunner interface {
	WithPaymentTx(ctx context.Context, fn func(tx *storage.PaymentTx) error) error
}

// Notifier receives payment state changes for best-effort delivery to the
// payer's devices. Implementations must not block the caller.
type Notifier interface {
	PaymentStateChanged(userID uuid.UUID, checkoutID, state string, amount float64)
}

// Receipts sends a payment receipt after successful settlement. Best effort;
// failures are logged, never surfaced.
type Receipts interface {
	SendPaymentReceipt(toUserID uuid.UUID, receiptNumber string, amount float64) error
}

type noopNotifier struct{}

func (noopNotifier) PaymentStateChanged(uuid.UUID, string, string, float64) {}
