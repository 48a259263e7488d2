package ports

import (
	"context"
	"errors"
	"time"
)

// ErrIdentityNotFound is returned when the identity provider has no such user.
var ErrIdentityNotFound = errors.New("identity not found")

// Identity is an authenticated user as seen by the identity provider.
type Identity struct {
	ID        string
	CreatedAt time.Time
	// Anonymous is true when the account has no linked credentials
	// (device or guest sessions only).
	Anonymous bool
}

// IdentityPort reads and removes users from the identity provider.
type IdentityPort interface {
	// GetIdentity returns ErrIdentityNotFound for unknown ids.
	GetIdentity(ctx context.Context, id string) (Identity, error)

	// DeleteIdentity returns ErrIdentityNotFound if the user is already gone.
	DeleteIdentity(ctx context.Context, id string) error

	// ListIdentities pages through every user. An empty cursor starts from
	// the beginning; an empty returned cursor means there are no more pages.
	ListIdentities(ctx context.Context, cursor string, limit int) ([]Identity, string, error)
}

// IdentityRegistry is an IdentityPort that can also mint anonymous users.
// The standalone HTTP server uses it to back its session endpoint.
type IdentityRegistry interface {
	IdentityPort
	CreateAnonymous(ctx context.Context) (Identity, error)
}
