package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

const (
	storeDirMode  = 0o700
	tokenFileMode = 0o600
	tokenFileName = "token"
)

// Store keeps the bearer token in a plain file under its root directory,
// readable only by the owning user.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.TokenStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrNoCredential
		}
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", domain.ErrNoCredential
	}

	return token, nil
}

func (s *Store) Put(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, storeDirMode); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	if err := os.WriteFile(s.tokenPath(), []byte(token), tokenFileMode); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.tokenPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete token file: %w", err)
	}

	return nil
}

func (s *Store) tokenPath() string {
	return filepath.Join(s.root, tokenFileName)
}
