package users

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

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.q.QueryRow(ctx, `
		SELECT id, username, email, role, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetDJByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.q.QueryRow(ctx, `
		SELECT id, username, email, role, created_at
		FROM users
		WHERE LOWER(username) = LOWER($1)
		  AND role = 'DJ'
	`, username).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dj by username: %w", err)
	}
	return &u, nil
}
