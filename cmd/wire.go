package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/campusqa/campusqa-cli/internal/adapters/api"
	chainstore "github.com/campusqa/campusqa-cli/internal/adapters/secrets/chain"
	tomlstate "github.com/campusqa/campusqa-cli/internal/adapters/state/toml"
	"github.com/campusqa/campusqa-cli/internal/application"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

const (
	configDirName = ".campusqa"

	serverURLKey      = "server.url"
	topKKey           = "query.top_k"
	streamingKey      = "query.streaming"
	timeoutSecondsKey = "query.timeout_seconds"
	logLevelKey       = "log.level"
)

type app struct {
	cfg      *viper.Viper
	log      zerolog.Logger
	client   *api.Client
	tokens   ports.TokenStore
	state    ports.StateStore
	sessions *application.SessionManager
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg, err := loadConfig(filepath.Join(homeDir, configDirName))
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.GetString(logLevelKey))

	tokens, err := chainstore.NewEnvFirstWithFileFallback(filepath.Join(homeDir, configDirName, "secrets"))
	if err != nil {
		return nil, fmt.Errorf("wire token store chain: %w", err)
	}

	state, err := tomlstate.NewStore(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire state store: %w", err)
	}

	client := api.NewClient(cfg.GetString(serverURLKey), &http.Client{}, tokens, log)

	return &app{
		cfg:      cfg,
		log:      log,
		client:   client,
		tokens:   tokens,
		state:    state,
		sessions: application.NewSessionManager(client, tokens, state, log),
	}, nil
}

func loadConfig(configDir string) (*viper.Viper, error) {
	cfg := viper.New()
	cfg.SetConfigName("config")
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(configDir)

	cfg.SetDefault(serverURLKey, "http://127.0.0.1:8000")
	cfg.SetDefault(topKKey, 0)
	cfg.SetDefault(streamingKey, true)
	cfg.SetDefault(timeoutSecondsKey, 45)
	cfg.SetDefault(logLevelKey, "warn")

	if err := cfg.BindEnv(serverURLKey, "CAMPUSQA_SERVER"); err != nil {
		return nil, fmt.Errorf("bind server env: %w", err)
	}
	if err := cfg.BindEnv(logLevelKey, "CAMPUSQA_LOG"); err != nil {
		return nil, fmt.Errorf("bind log env: %w", err)
	}

	err := cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}

// newController wires a turn controller against the given display surface
// and registers it as the session manager's canceller so session switches
// interrupt in-flight turns.
func (a *app) newController(renderer ports.Renderer) *application.TurnController {
	ctrl := application.NewTurnController(a.client, a.sessions, a.tokens, a.state, renderer, a.log)
	ctrl.SetTimeout(time.Duration(a.cfg.GetInt(timeoutSecondsKey)) * time.Second)
	a.sessions.SetTurnCanceller(ctrl)
	return ctrl
}

func (a *app) turnOptions(topK int) application.TurnOptions {
	if topK <= 0 {
		topK = a.cfg.GetInt(topKKey)
	}
	return application.TurnOptions{
		TopK:      topK,
		Streaming: a.cfg.GetBool(streamingKey),
	}
}
