package ports

import (
	"context"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

// QueryClient issues one conversational turn against the answer service.
type QueryClient interface {
	Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error)
	QueryStream(ctx context.Context, req domain.QueryRequest) (QueryStream, error)
}

// QueryStream is a lazy, finite, non-restartable sequence of stream frames.
// Next returns io.EOF when the underlying transport signals completion; a
// stream that never produced a metadata frame still terminates cleanly.
type QueryStream interface {
	Next() (domain.StreamFrame, error)
	Close() error
}

// SessionClient covers the session endpoints of the campusqa service.
type SessionClient interface {
	CreateSession(ctx context.Context, title string) (domain.SessionSummary, error)
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	RenameSession(ctx context.Context, id domain.SessionID, title string) (domain.SessionSummary, error)
	DeleteSession(ctx context.Context, id domain.SessionID) error
	SessionHistory(ctx context.Context, id domain.SessionID) (domain.SessionHistory, error)
}
