package refunds

import (
	"context"
	"errors"
	"fmt"

	"spinwish/internal/infra/dbx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

func (r *Repository) Create(ctx context.Context, rf *Refund) (*Refund, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO refunds (request_payment_id, amount, reason, status, refund_method)
		VALUES ($1, $2, $3, 'PENDING', $4)
		RETURNING id, status, initiated_at
	`, rf.RequestPaymentID, rf.Amount, rf.Reason, rf.RefundMethod).
		Scan(&rf.ID, &rf.Status, &rf.InitiatedAt)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return rf, nil
}

func (r *Repository) GetByRequestPaymentID(ctx context.Context, paymentID uuid.UUID) (*Refund, error) {
	var rf Refund
	err := r.q.QueryRow(ctx, `
		SELECT id, request_payment_id, amount, reason, status, refund_method,
		       transaction_id, initiated_at, completed_at, failure_reason
		FROM refunds
		WHERE request_payment_id = $1
	`, paymentID).Scan(
		&rf.ID, &rf.RequestPaymentID, &rf.Amount, &rf.Reason, &rf.Status, &rf.RefundMethod,
		&rf.TransactionID, &rf.InitiatedAt, &rf.CompletedAt, &rf.FailureReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refund by payment: %w", err)
	}
	return &rf, nil
}

func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, transactionID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE refunds
		   SET status = 'COMPLETED', transaction_id = $2, completed_at = now()
		 WHERE id = $1
	`, id, transactionID)
	if err != nil {
		return fmt.Errorf("mark refund completed: %w", err)
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE refunds
		   SET status = 'FAILED', failure_reason = $2
		 WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark refund failed: %w", err)
	}
	return nil
}
