package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the minimal projection of the account service this backend
// reads: payer identity on initiation and DJ resolution for tips.
// Registration, profiles and credentials live elsewhere.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // USER or DJ
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetDJByUsername(ctx context.Context, username string) (*User, error)
}
