package pushtokens

import (
	"context"
	"fmt"

	"spinwish/internal/infra/dbx"

	"github.com/google/uuid"
)

type Store interface {
	AddOrUpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error
	GetTokensByUserID(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

// AddOrUpdatePushToken upserts the token and refreshes last_updated.
func (r *Repository) AddOrUpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO user_push_tokens (user_id, expo_push_token, last_updated)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, expo_push_token)
		DO UPDATE SET last_updated = now()
	`, userID, token)
	if err != nil {
		return fmt.Errorf("upsert push token: %w", err)
	}
	return nil
}

func (r *Repository) GetTokensByUserID(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT expo_push_token FROM user_push_tokens WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
