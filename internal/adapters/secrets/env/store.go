package env

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

// TokenEnvVar overrides any token stored on disk when set.
const TokenEnvVar = "CAMPUSQA_TOKEN"

var errReadOnly = errors.New("env token store is read-only")

// Store reads the bearer token from the environment. Put and Clear always
// fail so a chained file store handles persistence.
type Store struct{}

var _ ports.TokenStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := strings.TrimSpace(os.Getenv(TokenEnvVar))
	if token == "" {
		return "", domain.ErrNoCredential
	}

	return token, nil
}

func (s *Store) Put(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return errReadOnly
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return errReadOnly
}
