package requests

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

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*SongRequest, error) {
	var sr SongRequest
	err := r.q.QueryRow(ctx, `
		SELECT id, dj_id, payer_id, song_title, message, status, created_at, updated_at
		FROM song_requests
		WHERE id = $1
	`, id).Scan(
		&sr.ID, &sr.DJID, &sr.PayerID, &sr.SongTitle, &sr.Message, &sr.Status,
		&sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get song request: %w", err)
	}
	return &sr, nil
}

func (r *Repository) MarkRejected(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE song_requests
		   SET status = 'REJECTED', updated_at = now()
		 WHERE id = $1
		   AND status <> 'REJECTED'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark request rejected: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
