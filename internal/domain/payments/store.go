package payments

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

func (r *Repository) CreateRequestPayment(ctx context.Context, p *RequestPayment) (*RequestPayment, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO request_payments
			(session_id, request_id, payer_id, payer_name, phone_number, amount, receipt_number, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, p.SessionID, p.RequestID, p.PayerID, p.PayerName, p.PhoneNumber, p.Amount, p.ReceiptNumber, p.TransactionDate).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create request payment: %w", err)
	}
	return p, nil
}

func (r *Repository) CreateTipPayment(ctx context.Context, p *TipPayment) (*TipPayment, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO tip_payments
			(session_id, dj_id, payer_id, payer_name, phone_number, amount, receipt_number, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, p.SessionID, p.DJID, p.PayerID, p.PayerName, p.PhoneNumber, p.Amount, p.ReceiptNumber, p.TransactionDate).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create tip payment: %w", err)
	}
	return p, nil
}

func (r *Repository) GetRequestPaymentByRequestID(ctx context.Context, requestID uuid.UUID) (*RequestPayment, error) {
	var p RequestPayment
	err := r.q.QueryRow(ctx, `
		SELECT id, session_id, request_id, payer_id, payer_name, phone_number,
		       amount, receipt_number, transaction_date, created_at
		FROM request_payments
		WHERE request_id = $1
	`, requestID).Scan(
		&p.ID, &p.SessionID, &p.RequestID, &p.PayerID, &p.PayerName, &p.PhoneNumber,
		&p.Amount, &p.ReceiptNumber, &p.TransactionDate, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get request payment by request: %w", err)
	}
	return &p, nil
}

const recordUnion = `
	SELECT id, 'REQUEST' AS type, payer_name, phone_number, amount,
	       receipt_number, transaction_date, request_id, NULL::uuid AS dj_id
	FROM request_payments
	UNION ALL
	SELECT id, 'TIP', payer_name, phone_number, amount,
	       receipt_number, transaction_date, NULL::uuid, dj_id
	FROM tip_payments`

func (r *Repository) GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	var rec Record
	err := r.q.QueryRow(ctx, `
		SELECT * FROM (`+recordUnion+`) AS p WHERE p.id = $1
	`, id).Scan(
		&rec.ID, &rec.Type, &rec.PayerName, &rec.PhoneNumber, &rec.Amount,
		&rec.ReceiptNumber, &rec.TransactionDate, &rec.RequestID, &rec.DJID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment record: %w", err)
	}
	return &rec, nil
}

func (r *Repository) ListRecords(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.q.Query(ctx, `
		SELECT * FROM (`+recordUnion+`) AS p
		ORDER BY p.transaction_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.Type, &rec.PayerName, &rec.PhoneNumber, &rec.Amount,
			&rec.ReceiptNumber, &rec.TransactionDate, &rec.RequestID, &rec.DJID,
		); err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EarningsForDJ sums confirmed request payments and tips. Rows only exist
// for sessions that completed, so the sums can never include pending or
// failed charges.
func (r *Repository) EarningsForDJ(ctx context.Context, djID uuid.UUID) (*Earnings, error) {
	e := &Earnings{DJID: djID}
	err := r.q.QueryRow(ctx, `
		SELECT
			COALESCE((
				SELECT SUM(rp.amount)
				FROM request_payments rp
				JOIN song_requests sr ON sr.id = rp.request_id
				WHERE sr.dj_id = $1
			), 0),
			COALESCE((SELECT SUM(amount) FROM tip_payments WHERE dj_id = $1), 0)
	`, djID).Scan(&e.RequestTotal, &e.TipTotal)
	if err != nil {
		return nil, fmt.Errorf("dj earnings: %w", err)
	}
	e.Total = e.RequestTotal + e.TipTotal
	return e, nil
}
