package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// Repository resolves users with memberships preloaded.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
