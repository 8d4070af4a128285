package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	Session sessionSchema `toml:"session"`
	Auth    authSchema    `toml:"auth"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	ActiveID string `toml:"active_id"`
}

type authSchema struct {
	MustChangePassword bool   `toml:"must_change_password"`
	LastUsername       string `toml:"last_username,omitempty"`
}
