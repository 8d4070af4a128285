package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/campusqa/campusqa-cli/internal/adapters/secrets/env"
	filestore "github.com/campusqa/campusqa-cli/internal/adapters/secrets/file"
	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

// Store consults a primary token store first and falls back to a secondary
// one. The usual wiring is env-first with a file store behind it, so
// CAMPUSQA_TOKEN overrides whatever login wrote to disk.
type Store struct {
	primary  ports.TokenStore
	fallback ports.TokenStore
}

var _ ports.TokenStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary token store is nil")
	errNilFallbackStore = errors.New("fallback token store is nil")
)

func NewStore(primary ports.TokenStore, fallback ports.TokenStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.TokenStore, fallback ports.TokenStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewEnvFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStoreChecked(envstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Get(ctx context.Context) (string, error) {
	token, err := s.primary.Get(ctx)
	if err == nil {
		return token, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackToken, fallbackErr := s.fallback.Get(ctx)
	if fallbackErr == nil {
		return fallbackToken, nil
	}

	if errors.Is(err, domain.ErrNoCredential) && errors.Is(fallbackErr, domain.ErrNoCredential) {
		return "", domain.ErrNoCredential
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

func (s *Store) Put(ctx context.Context, token string) error {
	err := s.primary.Put(ctx, token)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Put(ctx, token)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.primary.Clear(ctx)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Clear(ctx)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend clear failed: %w; fallback backend clear failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
