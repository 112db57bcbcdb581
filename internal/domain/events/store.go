package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"spinwish/internal/infra/dbx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

const entryColumns = `
	id, checkout_request_id, event_type, event_timestamp, payment_type,
	amount, phone_number, result_code, result_description, details,
	user_id, dj_id, request_id`

func (r *Repository) Append(ctx context.Context, e *Entry) error {
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err == nil {
			details = b
		}
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO payment_event_logs
			(checkout_request_id, event_type, payment_type, amount, phone_number,
			 result_code, result_description, details, user_id, dj_id, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, event_timestamp
	`, e.CheckoutRequestID, e.EventType, e.PaymentType, e.Amount, e.PhoneNumber,
		e.ResultCode, e.ResultDescription, details, e.UserID, e.DJID, e.RequestID).
		Scan(&e.ID, &e.EventTimestamp)
	if err != nil {
		return fmt.Errorf("append payment event: %w", err)
	}
	return nil
}

func (r *Repository) ListByCheckoutID(ctx context.Context, checkoutID string) ([]*Entry, error) {
	return r.list(ctx, `WHERE checkout_request_id = $1`, checkoutID)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Entry, error) {
	return r.list(ctx, `WHERE user_id = $1`, userID)
}

func (r *Repository) ListByDJ(ctx context.Context, djID uuid.UUID) ([]*Entry, error) {
	return r.list(ctx, `WHERE dj_id = $1`, djID)
}

func (r *Repository) ListByTimeRange(ctx context.Context, from, to time.Time) ([]*Entry, error) {
	return r.list(ctx, `WHERE event_timestamp BETWEEN $1 AND $2`, from, to)
}

func (r *Repository) ListByType(ctx context.Context, t Type) ([]*Entry, error) {
	return r.list(ctx, `WHERE event_type = $1`, t)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]*Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM payment_event_logs
		`+where+`
		ORDER BY event_timestamp DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e       Entry
		details []byte
	)
	err := row.Scan(
		&e.ID, &e.CheckoutRequestID, &e.EventType, &e.EventTimestamp, &e.PaymentType,
		&e.Amount, &e.PhoneNumber, &e.ResultCode, &e.ResultDescription, &details,
		&e.UserID, &e.DJID, &e.RequestID,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &e.Details)
	}
	return &e, nil
}
