package ports

import (
	"context"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

// StateStore persists the small client-side state that must survive a
// restart: the active session id, the forced password-change flag, and the
// last username used to log in.
type StateStore interface {
	Load(ctx context.Context) (domain.ClientState, error)
	Save(ctx context.Context, state domain.ClientState) error
}
