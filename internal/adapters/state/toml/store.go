package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

const (
	configName      = "config"
	configType      = "toml"
	statePathKey    = "state.path"
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	stateConfigDir  = ".campusqa"
	stateConfigFile = "state.toml"
	tempFilePattern = ".state-*.toml.tmp"
)

// Store persists ClientState as a TOML file under ~/.campusqa. Writes go
// through a temp file plus rename so a crash never leaves a half-written
// state file behind.
type Store struct {
	statePath string
	mu        *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.StateStore = (*Store)(nil)

func NewStore(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, stateConfigDir, stateConfigFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, stateConfigDir))
	cfg.SetDefault(statePathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	statePath := cfg.GetString(statePathKey)
	if statePath == "" {
		return nil, errors.New("state path is empty")
	}
	statePath, err = normalizeStatePath(statePath)
	if err != nil {
		return nil, err
	}

	return &Store{statePath: statePath, mu: lockForPath(statePath)}, nil
}

func (s *Store) Load(ctx context.Context) (domain.ClientState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClientState{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.ClientState{}, err
	}

	return fromSchema(file), nil
}

func (s *Store) Save(ctx context.Context, state domain.ClientState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeSchema(toSchema(state))
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.statePath), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.statePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, s.statePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(s.statePath, stateFileMode); err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}

	return nil
}

func normalizeStatePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(state domain.ClientState) fileSchema {
	return fileSchema{
		Version: currentSchemaVersion,
		Session: sessionSchema{
			ActiveID: string(state.ActiveSessionID),
		},
		Auth: authSchema{
			MustChangePassword: state.MustChangePassword,
			LastUsername:       state.LastUsername,
		},
	}
}

func fromSchema(file fileSchema) domain.ClientState {
	return domain.ClientState{
		ActiveSessionID:    domain.SessionID(file.Session.ActiveID),
		MustChangePassword: file.Auth.MustChangePassword,
		LastUsername:       file.Auth.LastUsername,
	}
}
