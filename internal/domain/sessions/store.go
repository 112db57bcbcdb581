package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spinwish/internal/infra/dbx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

const sessionColumns = `
	id, checkout_request_id, kind, request_id, dj_id, payer_id,
	phone_number, amount, status, retry_count, failure_reason,
	result_code, result_description, receipt_number, transaction_date,
	created_at, last_updated`

func (r *Repository) Create(ctx context.Context, s *Session) (*Session, error) {
	var requestID, djID *uuid.UUID
	if id, ok := s.Target.RequestID(); ok {
		requestID = &id
	}
	if id, ok := s.Target.DJID(); ok {
		djID = &id
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO stk_push_sessions
			(checkout_request_id, kind, request_id, dj_id, payer_id, phone_number, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING')
		RETURNING id, status, retry_count, created_at
	`, s.CheckoutRequestID, s.Target.Kind(), requestID, djID, s.PayerID, s.PhoneNumber, s.Amount).
		Scan(&s.ID, &s.Status, &s.RetryCount, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create stk session: %w", err)
	}
	return s, nil
}

func (r *Repository) GetByCheckoutID(ctx context.Context, checkoutID string) (*Session, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM stk_push_sessions
		WHERE checkout_request_id = $1
	`, checkoutID)

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stk session: %w", err)
	}
	return s, nil
}

func (r *Repository) ListPending(ctx context.Context) ([]*Session, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM stk_push_sessions
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkCompleted performs the PENDING -> COMPLETED compare-and-set. A session
// already in a terminal state is left untouched and (false, nil) is returned.
func (r *Repository) MarkCompleted(ctx context.Context, checkoutID, receiptNumber string, transactionDate time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE stk_push_sessions
		   SET status = 'COMPLETED',
		       receipt_number = $2,
		       transaction_date = $3,
		       result_code = 0,
		       last_updated = now()
		 WHERE checkout_request_id = $1
		   AND status = 'PENDING'
	`, checkoutID, receiptNumber, transactionDate)
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkFailed(ctx context.Context, checkoutID string, resultCode int, reason string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE stk_push_sessions
		   SET status = 'FAILED',
		       result_code = $2,
		       failure_reason = $3,
		       result_description = $3,
		       last_updated = now()
		 WHERE checkout_request_id = $1
		   AND status = 'PENDING'
	`, checkoutID, resultCode, reason)
	if err != nil {
		return false, fmt.Errorf("mark session failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) IncrementRetry(ctx context.Context, checkoutID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE stk_push_sessions
		   SET retry_count = retry_count + 1,
		       last_updated = now()
		 WHERE checkout_request_id = $1
	`, checkoutID)
	if err != nil {
		return fmt.Errorf("increment session retry: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s         Session
		kind      TargetKind
		requestID *uuid.UUID
		djID      *uuid.UUID
	)

	err := row.Scan(
		&s.ID, &s.CheckoutRequestID, &kind, &requestID, &djID, &s.PayerID,
		&s.PhoneNumber, &s.Amount, &s.Status, &s.RetryCount, &s.FailureReason,
		&s.ResultCode, &s.ResultDescription, &s.ReceiptNumber, &s.TransactionDate,
		&s.CreatedAt, &s.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindRequest:
		if requestID == nil {
			return nil, fmt.Errorf("session %s: kind=request with no request_id", s.CheckoutRequestID)
		}
		s.Target = ForRequest(*requestID)
	case KindTip:
		if djID == nil {
			return nil, fmt.Errorf("session %s: kind=tip with no dj_id", s.CheckoutRequestID)
		}
		s.Target = ForTip(*djID)
	default:
		return nil, fmt.Errorf("session %s: unknown kind %q", s.CheckoutRequestID, kind)
	}

	return &s, nil
}
