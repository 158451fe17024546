package user

import (
	"context"

	"github.com/google/uuid"
)

// ListParams controls pagination for user listings.
type ListParams struct {
	Offset int
	Limit  int
}

// UserRepository defines read access to user records.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	List(ctx context.Context, params ListParams) ([]*User, error)
}
