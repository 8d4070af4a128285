package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTurnTimeout is the wall-clock budget for one query turn.
const DefaultTurnTimeout = 45 * time.Second

const (
	reasonCancelled  = "请求已取消"
	reasonTimedOut   = "请求超时，已中断"
	loginHint        = "登录已过期，请重新登录（cqa login）"
	noCredentialHint = "尚未登录，请先运行 cqa login"
	passwordHint     = "需要先修改初始密码，请运行 cqa passwd"
)

// TurnOptions configures one query turn.
type TurnOptions struct {
	TopK      int
	Streaming bool
}

// TurnResult is the terminal outcome of one turn.
type TurnResult struct {
	State  domain.TurnState
	Answer string
	Meta   *domain.QueryMeta
	Reason string // cancellation reason or error detail for non-completed turns
}

// TurnController executes query turns. At most one turn is in flight
// system-wide; starting another while one is active fails with
// domain.ErrTurnInFlight, and the caller's affordance for retrying is simply
// sending again once the slot is free.
type TurnController struct {
	queries  ports.QueryClient
	sessions *SessionManager
	tokens   ports.TokenStore
	state    ports.StateStore
	renderer ports.Renderer
	log      zerolog.Logger
	timeout  time.Duration

	mu       sync.Mutex
	inflight *inflightTurn
}

type inflightTurn struct {
	id        string
	cancel    context.CancelFunc
	timer     *time.Timer
	reason    string
	cancelled bool
	done      chan struct{}
}

func NewTurnController(queries ports.QueryClient, sessions *SessionManager, tokens ports.TokenStore, state ports.StateStore, renderer ports.Renderer, log zerolog.Logger) *TurnController {
	return &TurnController{
		queries:  queries,
		sessions: sessions,
		tokens:   tokens,
		state:    state,
		renderer: renderer,
		log:      log,
		timeout:  DefaultTurnTimeout,
	}
}

// SetTimeout overrides the turn timeout. Zero restores the default.
func (c *TurnController) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTurnTimeout
	}
	c.timeout = d
}

// InFlight reports whether a turn currently occupies the slot. The UI
// exposes this as its send/stop toggle.
func (c *TurnController) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Cancel triggers cancellation of the in-flight turn, if any. The most
// recently set reason is the one shown to the user. Returns false when the
// slot was idle.
func (c *TurnController) Cancel(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := c.inflight
	if turn == nil {
		return false
	}

	if reason != "" {
		turn.reason = reason
	}
	turn.cancelled = true
	turn.cancel()
	c.log.Debug().Str("turn", turn.id).Str("reason", turn.reason).Msg("turn cancel requested")
	return true
}

// CancelAndWait cancels the in-flight turn and blocks until its slot has
// been released (or ctx expires). Used by the session manager before
// reassigning the active session id.
func (c *TurnController) CancelAndWait(ctx context.Context, reason string) {
	c.mu.Lock()
	turn := c.inflight
	if turn != nil {
		if reason != "" {
			turn.reason = reason
		}
		turn.cancelled = true
		turn.cancel()
	}
	c.mu.Unlock()

	if turn == nil {
		return
	}

	select {
	case <-turn.done:
	case <-ctx.Done():
	}
}

// Run executes one complete turn: acquire the slot, resolve a session,
// issue the request, stream/await the answer, and render the terminal
// outcome. The slot, the timeout timer, and the cancellation token are
// always released, whatever path the turn exits through.
func (c *TurnController) Run(ctx context.Context, query string, opts TurnOptions) (TurnResult, error) {
	turn, runCtx, err := c.acquire(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	defer c.release(turn)

	userUnit := c.renderer.CreateUnit(domain.RoleUser)
	c.renderer.UpdateUnit(userUnit, query)
	answerUnit := c.renderer.CreateUnit(domain.RoleAssistant)

	result := c.execute(runCtx, turn, answerUnit, query, opts)
	c.log.Debug().Str("turn", turn.id).Str("state", string(result.State)).Msg("turn finished")
	return result, nil
}

func (c *TurnController) acquire(ctx context.Context) (*inflightTurn, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil {
		return nil, nil, domain.ErrTurnInFlight
	}

	runCtx, cancel := context.WithCancel(ctx)
	turn := &inflightTurn{
		id:     uuid.NewString()[:8],
		cancel: cancel,
		done:   make(chan struct{}),
	}
	turn.timer = time.AfterFunc(c.timeout, func() {
		c.Cancel(reasonTimedOut)
	})
	c.inflight = turn

	c.log.Debug().Str("turn", turn.id).Msg("turn started")
	return turn, runCtx, nil
}

func (c *TurnController) release(turn *inflightTurn) {
	c.mu.Lock()
	turn.timer.Stop()
	turn.cancel()
	c.inflight = nil
	c.mu.Unlock()
	close(turn.done)
}

func (c *TurnController) execute(ctx context.Context, turn *inflightTurn, unit ports.RenderUnit, query string, opts TurnOptions) TurnResult {
	sessionID, err := c.sessions.EnsureSession(ctx, false)
	if err != nil {
		return c.fail(ctx, turn, unit, err)
	}

	req := domain.QueryRequest{
		Query:     query,
		TopK:      opts.TopK,
		SessionID: sessionID,
		Streaming: opts.Streaming,
	}

	var result TurnResult
	if opts.Streaming {
		result = c.executeStreaming(ctx, turn, unit, req)
	} else {
		result = c.executeAtomic(ctx, turn, unit, req)
	}

	if result.State == domain.TurnCompleted {
		if _, err := c.sessions.RefreshSessions(ctx); err != nil {
			c.log.Debug().Err(err).Msg("summary refresh after turn failed")
		}
	}

	return result
}

func (c *TurnController) executeStreaming(ctx context.Context, turn *inflightTurn, unit ports.RenderUnit, req domain.QueryRequest) TurnResult {
	stream, err := c.queries.QueryStream(ctx, req)
	if err != nil {
		return c.fail(ctx, turn, unit, err)
	}
	defer stream.Close()

	var raw strings.Builder
	var meta *domain.QueryMeta
	for {
		frame, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.fail(ctx, turn, unit, err)
		}

		if frame.IsMeta() {
			meta = frame.Meta
			continue
		}
		raw.WriteString(frame.Content)
		c.updateUnit(turn, unit, domain.Sanitize(raw.String()))
	}

	if c.isCancelled(turn) {
		return c.cancelledResult(turn, unit)
	}

	return c.complete(turn, unit, domain.Sanitize(raw.String()), meta)
}

func (c *TurnController) executeAtomic(ctx context.Context, turn *inflightTurn, unit ports.RenderUnit, req domain.QueryRequest) TurnResult {
	resp, err := c.queries.Query(ctx, req)
	if err != nil {
		return c.fail(ctx, turn, unit, err)
	}

	if c.isCancelled(turn) {
		return c.cancelledResult(turn, unit)
	}

	meta := resp.Meta
	return c.complete(turn, unit, domain.Sanitize(resp.Answer), &meta)
}

func (c *TurnController) complete(turn *inflightTurn, unit ports.RenderUnit, answer string, meta *domain.QueryMeta) TurnResult {
	content := answer
	if footer := MetaFooter(meta); footer != "" {
		content += "\n\n" + footer
	}
	c.updateUnit(turn, unit, content)

	return TurnResult{State: domain.TurnCompleted, Answer: answer, Meta: meta}
}

// fail maps an error onto the turn's terminal state and renders the
// matching notice. Cancellation is checked first: an aborted read surfaces
// as a context error, and the pending reason must win over it.
func (c *TurnController) fail(ctx context.Context, turn *inflightTurn, unit ports.RenderUnit, err error) TurnResult {
	switch {
	case c.isCancelled(turn) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return c.cancelledResult(turn, unit)

	case errors.Is(err, domain.ErrNoCredential):
		c.renderer.ErrorUnit(unit, noCredentialHint)
		return TurnResult{State: domain.TurnAuthExpired, Reason: noCredentialHint}

	case errors.Is(err, domain.ErrAuthExpired):
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			c.log.Debug().Err(clearErr).Msg("clear credential failed")
		}
		c.renderer.ErrorUnit(unit, loginHint)
		return TurnResult{State: domain.TurnAuthExpired, Reason: loginHint}

	case errors.Is(err, domain.ErrPasswordRequired):
		c.persistMustChange(ctx)
		c.renderer.ErrorUnit(unit, passwordHint)
		return TurnResult{State: domain.TurnPasswordRequired, Reason: passwordHint}
	}

	detail := errorDetail(err)
	c.renderer.ErrorUnit(unit, detail)
	return TurnResult{State: domain.TurnFailed, Reason: detail}
}

func (c *TurnController) cancelledResult(turn *inflightTurn, unit ports.RenderUnit) TurnResult {
	reason := c.cancelReason(turn)
	c.renderer.ErrorUnit(unit, reason)
	return TurnResult{State: domain.TurnCancelled, Reason: reason}
}

func (c *TurnController) persistMustChange(ctx context.Context) {
	state, err := c.state.Load(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("load client state failed")
		return
	}
	state.MustChangePassword = true
	if err := c.state.Save(ctx, state); err != nil {
		c.log.Debug().Err(err).Msg("persist must-change flag failed")
	}
}

func (c *TurnController) isCancelled(turn *inflightTurn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return turn.cancelled
}

func (c *TurnController) cancelReason(turn *inflightTurn) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn.reason == "" {
		return reasonCancelled
	}
	return turn.reason
}

// updateUnit forwards content to the renderer unless the turn has been
// cancelled: frames resolved after cancellation takes effect must not reach
// the display.
func (c *TurnController) updateUnit(turn *inflightTurn, unit ports.RenderUnit, content string) {
	if c.isCancelled(turn) {
		return
	}
	c.renderer.UpdateUnit(unit, content)
}

// MetaFooter formats the metadata record for display under an answer.
func MetaFooter(meta *domain.QueryMeta) string {
	if meta == nil {
		return ""
	}

	var lines []string
	for _, source := range meta.Sources {
		lines = append(lines, fmt.Sprintf("参考: %s (%.2f)", source.Source, source.Score))
	}
	if meta.LatencyMS != nil {
		lines = append(lines, fmt.Sprintf("耗时: %.0f ms", *meta.LatencyMS))
	}

	return strings.Join(lines, "\n")
}

func errorDetail(err error) string {
	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) && svcErr.Detail != "" {
		return svcErr.Detail
	}
	return err.Error()
}
