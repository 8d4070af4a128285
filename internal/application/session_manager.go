package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
	"github.com/rs/zerolog"
)

// TurnCanceller force-cancels the in-flight turn, if any, and blocks until
// its slot is released. The session manager depends on it so that a switch
// can never leave a prior session's stream writing into the new transcript.
type TurnCanceller interface {
	CancelAndWait(ctx context.Context, reason string)
}

// SessionManager owns the active session id and the cached summaries. The
// active id, once set, only changes through CreateSession, SwitchSession, or
// DeleteSession of the active session.
type SessionManager struct {
	sessions  ports.SessionClient
	tokens    ports.TokenStore
	state     ports.StateStore
	log       zerolog.Logger
	canceller TurnCanceller

	mu        sync.Mutex
	activeID  domain.SessionID
	summaries []domain.SessionSummary
}

func NewSessionManager(sessions ports.SessionClient, tokens ports.TokenStore, state ports.StateStore, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		tokens:   tokens,
		state:    state,
		log:      log,
	}
}

// SetTurnCanceller wires the turn controller in after construction; the two
// reference each other.
func (m *SessionManager) SetTurnCanceller(c TurnCanceller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceller = c
}

// Restore loads the persisted active session id so a restarted client picks
// up its previous conversation.
func (m *SessionManager) Restore(ctx context.Context) error {
	state, err := m.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load client state: %w", err)
	}

	m.mu.Lock()
	m.activeID = state.ActiveSessionID
	m.mu.Unlock()

	return nil
}

func (m *SessionManager) ActiveSession() domain.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Summaries returns the cached session summaries from the last refresh.
func (m *SessionManager) Summaries() []domain.SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SessionSummary, len(m.summaries))
	copy(out, m.summaries)
	return out
}

// EnsureSession returns the active session id, creating a session when none
// is active or forceNew is set. It fails with domain.ErrNoCredential before
// touching the network when no token is stored, signalling the caller to
// route to authentication.
func (m *SessionManager) EnsureSession(ctx context.Context, forceNew bool) (domain.SessionID, error) {
	if _, err := m.tokens.Get(ctx); err != nil {
		return "", err
	}

	if !forceNew {
		if id := m.ActiveSession(); id != "" {
			return id, nil
		}
	}

	summary, err := m.CreateSession(ctx, "")
	if err != nil {
		return "", err
	}

	return summary.ID, nil
}

// CreateSession requests a new session, makes it active, and persists the id
// for restart resilience.
func (m *SessionManager) CreateSession(ctx context.Context, title string) (domain.SessionSummary, error) {
	summary, err := m.sessions.CreateSession(ctx, title)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("create session: %w", err)
	}

	m.setActive(summary.ID)
	if err := m.persistActive(ctx, summary.ID); err != nil {
		return domain.SessionSummary{}, err
	}

	m.log.Debug().Str("session", string(summary.ID)).Msg("session created")
	return summary, nil
}

// SwitchSession makes id the active session and returns its history. When a
// different session is in flight it first force-cancels that turn and waits
// for the slot to be released; only then is the active id reassigned. This
// ordering is the guarantee against cross-session content leakage.
func (m *SessionManager) SwitchSession(ctx context.Context, id domain.SessionID) (domain.SessionHistory, error) {
	if id == m.ActiveSession() {
		return m.LoadHistory(ctx)
	}

	m.cancelInFlight(ctx, "已切换会话，请求中止")

	m.setActive(id)
	if err := m.persistActive(ctx, id); err != nil {
		return domain.SessionHistory{}, err
	}

	m.log.Debug().Str("session", string(id)).Msg("session switched")
	return m.LoadHistory(ctx)
}

func (m *SessionManager) RenameSession(ctx context.Context, id domain.SessionID, title string) (domain.SessionSummary, error) {
	summary, err := m.sessions.RenameSession(ctx, id, title)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("rename session: %w", err)
	}

	m.updateCached(summary)
	return summary, nil
}

// DeleteSession removes a session. Deleting the active session creates a
// fresh session and activates it in place of the old one; the replacement
// summary is returned, nil otherwise.
func (m *SessionManager) DeleteSession(ctx context.Context, id domain.SessionID) (*domain.SessionSummary, error) {
	if id == m.ActiveSession() {
		m.cancelInFlight(ctx, "会话已删除，请求中止")
	}

	if err := m.sessions.DeleteSession(ctx, id); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	m.dropCached(id)

	if id != m.ActiveSession() {
		return nil, nil
	}

	replacement, err := m.CreateSession(ctx, "")
	if err != nil {
		return nil, err
	}

	return &replacement, nil
}

// RefreshSessions reloads the summary cache.
func (m *SessionManager) RefreshSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	summaries, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	m.mu.Lock()
	m.summaries = summaries
	m.mu.Unlock()

	out := make([]domain.SessionSummary, len(summaries))
	copy(out, summaries)
	return out, nil
}

// LoadHistory fetches the active session's transcript. An empty transcript
// is a valid result, distinct from domain.ErrNoActiveSession.
func (m *SessionManager) LoadHistory(ctx context.Context) (domain.SessionHistory, error) {
	id := m.ActiveSession()
	if id == "" {
		return domain.SessionHistory{}, domain.ErrNoActiveSession
	}

	history, err := m.sessions.SessionHistory(ctx, id)
	if err != nil {
		return domain.SessionHistory{}, fmt.Errorf("load session history: %w", err)
	}

	return history, nil
}

func (m *SessionManager) cancelInFlight(ctx context.Context, reason string) {
	m.mu.Lock()
	canceller := m.canceller
	m.mu.Unlock()

	if canceller != nil {
		canceller.CancelAndWait(ctx, reason)
	}
}

func (m *SessionManager) setActive(id domain.SessionID) {
	m.mu.Lock()
	m.activeID = id
	m.mu.Unlock()
}

func (m *SessionManager) persistActive(ctx context.Context, id domain.SessionID) error {
	state, err := m.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load client state: %w", err)
	}

	state.ActiveSessionID = id
	if err := m.state.Save(ctx, state); err != nil {
		return fmt.Errorf("save client state: %w", err)
	}

	return nil
}

func (m *SessionManager) updateCached(summary domain.SessionSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.summaries {
		if m.summaries[i].ID == summary.ID {
			m.summaries[i] = summary
			return
		}
	}
}

func (m *SessionManager) dropCached(id domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.summaries {
		if m.summaries[i].ID == id {
			m.summaries = append(m.summaries[:i], m.summaries[i+1:]...)
			return
		}
	}
}
