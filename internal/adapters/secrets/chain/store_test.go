package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

type fakeStore struct {
	token    string
	getErr   error
	putErr   error
	clearErr error
	puts     []string
	clears   int
}

func (f *fakeStore) Get(context.Context) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.token, nil
}

func (f *fakeStore) Put(_ context.Context, token string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, token)
	return nil
}

func (f *fakeStore) Clear(context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	return nil
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{token: "from-env"}
	fallback := &fakeStore{token: "from-file"}
	store := NewStore(primary, fallback)

	token, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestStoreGetFallsBackWhenPrimaryHasNoCredential(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{getErr: domain.ErrNoCredential}
	fallback := &fakeStore{token: "from-file"}
	store := NewStore(primary, fallback)

	token, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)
}

func TestStoreGetReportsNoCredentialWhenBothBackendsAreEmpty(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{getErr: domain.ErrNoCredential}
	fallback := &fakeStore{getErr: domain.ErrNoCredential}
	store := NewStore(primary, fallback)

	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{getErr: errors.New("env failed")}
	fallback := &fakeStore{getErr: errors.New("file failed")}
	store := NewStore(primary, fallback)

	_, err := store.Get(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "env failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{putErr: errors.New("read-only")}
	fallback := &fakeStore{}
	store := NewStore(primary, fallback)

	require.NoError(t, store.Put(context.Background(), "token-1"))
	assert.Equal(t, []string{"token-1"}, fallback.puts)
}

func TestStoreClearFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{clearErr: errors.New("read-only")}
	fallback := &fakeStore{}
	store := NewStore(primary, fallback)

	require.NoError(t, store.Clear(context.Background()))
	assert.Equal(t, 1, fallback.clears)
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := &fakeStore{getErr: context.Canceled}
	fallback := &fakeStore{token: "from-file"}
	store := NewStore(primary, fallback)

	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnvFirstWithFileFallbackPrefersEnvironment(t *testing.T) {
	fileRoot := t.TempDir()
	t.Setenv("CAMPUSQA_TOKEN", "env-token")

	store, err := NewEnvFirstWithFileFallback(fileRoot)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "file-token"))

	token, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}

func TestEnvFirstWithFileFallbackReadsFileWhenEnvUnset(t *testing.T) {
	fileRoot := t.TempDir()
	t.Setenv("CAMPUSQA_TOKEN", "")

	store, err := NewEnvFirstWithFileFallback(fileRoot)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "file-token"))

	token, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file-token", token)
}
