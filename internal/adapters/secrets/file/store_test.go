package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	want := "top-secret"

	err := store.Put(context.Background(), want)
	require.NoError(t, err)

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	tokenPath := filepath.Join(root, "token")
	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(tokenFileMode), info.Mode().Perm())
}

func TestStoreGetMissingTokenReturnsNoCredential(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestStoreGetBlankTokenReturnsNoCredential(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "token"), []byte("  \n"), 0o600))

	store := NewStore(root)

	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestStorePutRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	err := store.Put(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorContains(t, err, "token is empty")
}

func TestStoreClearIsIdempotentWhenTokenMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	require.NoError(t, store.Clear(context.Background()))
	require.NoError(t, store.Clear(context.Background()))
}

func TestStoreGetTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "token"), []byte("tok-1\n"), 0o600))

	store := NewStore(root)

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
}
