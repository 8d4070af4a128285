package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	config := viper.New()
	config.Set("state.path", statePath)

	store, err := NewStore(config)
	require.NoError(t, err)

	state := domain.ClientState{
		ActiveSessionID:    "sess-1",
		MustChangePassword: true,
		LastUsername:       "alice",
	}

	require.NoError(t, store.Save(context.Background(), state))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestStoreMissingFileReturnsZeroState(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "missing", "state.toml")
	config := viper.New()
	config.Set("state.path", statePath)

	store, err := NewStore(config)
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ClientState{}, got)
}

func TestStoreSaveCreatesDefaultPathAndEnforcesPermissions(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	store, err := NewStore(viper.New())
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), domain.ClientState{ActiveSessionID: "sess-1"}))

	statePath := filepath.Join(homeDir, ".campusqa", "state.toml")
	info, err := os.Stat(statePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte("session = ["), 0o600))

	config := viper.New()
	config.Set("state.path", statePath)

	store, err := NewStore(config)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode state file")
}

func TestStoreSaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	config := viper.New()
	config.Set("state.path", statePath)

	store, err := NewStore(config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Save(ctx, domain.ClientState{ActiveSessionID: "sess-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStoreSerializedTOMLIncludesVersion(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	config := viper.New()
	config.Set("state.path", statePath)

	store, err := NewStore(config)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), domain.ClientState{ActiveSessionID: "sess-1"}))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestStoreFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte(strings.Join([]string{
		"version = 999",
		"",
		"[session]",
		"active_id = \"sess-1\"",
		"",
	}, "\n")), 0o600))

	config := viper.New()
	config.Set("state.path", statePath)

	store, err := NewStore(config)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported state schema version")
}
