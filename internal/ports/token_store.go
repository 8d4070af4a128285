package ports

import "context"

// TokenStore holds the bearer token for the campusqa service. Get returns
// domain.ErrNoCredential when no token is stored.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Put(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
