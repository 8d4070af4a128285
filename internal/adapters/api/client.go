package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxErrorBodyBytes = 1 << 20

// Client talks to the campusqa service. It attaches the stored bearer token
// to protected endpoints and maps auth-related status codes onto the domain
// error taxonomy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     ports.TokenStore
	log        zerolog.Logger
}

var (
	_ ports.QueryClient   = (*Client)(nil)
	_ ports.SessionClient = (*Client)(nil)
)

func NewClient(baseURL string, httpClient *http.Client, tokens ports.TokenStore, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		log:        log,
	}
}

type queryPayload struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Streaming bool   `json:"streaming"`
}

type sourceSchema struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type queryResponseSchema struct {
	Answer    string         `json:"answer"`
	Sources   []sourceSchema `json:"sources"`
	LatencyMS *float64       `json:"latency_ms"`
}

func (c *Client) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	req.Streaming = false
	resp, err := c.postJSON(ctx, "/api/query", toQueryPayload(req), true)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	defer resp.Body.Close()

	var decoded queryResponseSchema
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.QueryResponse{}, fmt.Errorf("decode query response: %w", err)
	}

	return domain.QueryResponse{
		Answer: decoded.Answer,
		Meta: domain.QueryMeta{
			Sources:   fromSourceSchemas(decoded.Sources),
			LatencyMS: decoded.LatencyMS,
		},
	}, nil
}

func (c *Client) QueryStream(ctx context.Context, req domain.QueryRequest) (ports.QueryStream, error) {
	req.Streaming = true
	resp, err := c.postJSON(ctx, "/api/query/stream", toQueryPayload(req), true)
	if err != nil {
		return nil, err
	}

	return &bodyStream{decoder: NewStreamDecoder(resp.Body), body: resp.Body}, nil
}

type bodyStream struct {
	decoder *StreamDecoder
	body    io.ReadCloser
}

func (s *bodyStream) Next() (domain.StreamFrame, error) {
	return s.decoder.Next()
}

func (s *bodyStream) Close() error {
	return s.body.Close()
}

type sessionSummarySchema struct {
	SessionID    string  `json:"session_id"`
	Title        string  `json:"title"`
	LastMessage  string  `json:"last_message"`
	CreatedAt    float64 `json:"created_at"`
	UpdatedAt    float64 `json:"updated_at"`
	MessageCount int     `json:"message_count"`
}

func (c *Client) CreateSession(ctx context.Context, title string) (domain.SessionSummary, error) {
	payload := map[string]string{}
	if strings.TrimSpace(title) != "" {
		payload["title"] = strings.TrimSpace(title)
	}

	resp, err := c.postJSON(ctx, "/api/session/new", payload, true)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	defer resp.Body.Close()

	var decoded struct {
		SessionID string  `json:"session_id"`
		Title     string  `json:"title"`
		CreatedAt float64 `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("decode session create response: %w", err)
	}

	created := unixTime(decoded.CreatedAt)
	return domain.SessionSummary{
		ID:        domain.SessionID(decoded.SessionID),
		Title:     decoded.Title,
		CreatedAt: created,
		UpdatedAt: created,
	}, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/session", nil, "", true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Sessions []sessionSummarySchema `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode session list response: %w", err)
	}

	summaries := make([]domain.SessionSummary, 0, len(decoded.Sessions))
	for _, entry := range decoded.Sessions {
		summaries = append(summaries, fromSummarySchema(entry))
	}

	return summaries, nil
}

func (c *Client) RenameSession(ctx context.Context, id domain.SessionID, title string) (domain.SessionSummary, error) {
	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("encode rename payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPatch, "/api/session/"+url.PathEscape(string(id)), bytes.NewReader(body), "application/json", true)
	if err != nil {
		if isNotFound(err) {
			return domain.SessionSummary{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return domain.SessionSummary{}, err
	}
	defer resp.Body.Close()

	var decoded sessionSummarySchema
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("decode session rename response: %w", err)
	}

	return fromSummarySchema(decoded), nil
}

func (c *Client) DeleteSession(ctx context.Context, id domain.SessionID) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/session/"+url.PathEscape(string(id)), nil, "", true)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return err
	}
	resp.Body.Close()

	return nil
}

func (c *Client) SessionHistory(ctx context.Context, id domain.SessionID) (domain.SessionHistory, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(string(id))+"/history", nil, "", true)
	if err != nil {
		if isNotFound(err) {
			return domain.SessionHistory{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return domain.SessionHistory{}, err
	}
	defer resp.Body.Close()

	var decoded struct {
		SessionID string `json:"session_id"`
		Title     string `json:"title"`
		History   []struct {
			Role      string  `json:"role"`
			Content   string  `json:"content"`
			CreatedAt float64 `json:"created_at"`
		} `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.SessionHistory{}, fmt.Errorf("decode session history response: %w", err)
	}

	history := domain.SessionHistory{
		ID:       domain.SessionID(decoded.SessionID),
		Title:    decoded.Title,
		Messages: make([]domain.Message, 0, len(decoded.History)),
	}
	for _, entry := range decoded.History {
		history.Messages = append(history.Messages, domain.Message{
			Role:      domain.Role(entry.Role),
			Content:   entry.Content,
			CreatedAt: unixTime(entry.CreatedAt),
		})
	}

	return history, nil
}

// LoginResult is the outcome of a username/password login.
type LoginResult struct {
	Token              string
	MustChangePassword bool
	Role               string
}

// Login exchanges a username and password for a bearer token. Unlike the
// protected endpoints, a 401 here means wrong credentials and is surfaced as
// a plain ServiceError rather than domain.ErrAuthExpired.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return LoginResult{}, fmt.Errorf("create login request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return LoginResult{}, fmt.Errorf("perform login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return LoginResult{}, &domain.ServiceError{StatusCode: resp.StatusCode, Detail: extractDetail(body)}
	}

	var decoded struct {
		Token              string `json:"token"`
		MustChangePassword bool   `json:"must_change_password"`
		Role               string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return LoginResult{}, fmt.Errorf("decode login response: %w", err)
	}

	return LoginResult{
		Token:              decoded.Token,
		MustChangePassword: decoded.MustChangePassword,
		Role:               decoded.Role,
	}, nil
}

// ChangePassword sets a new password for the logged-in user. The endpoint
// accepts tokens still in the must-change state.
func (c *Client) ChangePassword(ctx context.Context, newPassword string) error {
	form := url.Values{}
	form.Set("new_password", newPassword)

	resp, err := c.do(ctx, http.MethodPost, "/api/auth/change_password", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", true)
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

// HealthStatus is the unauthenticated service health snapshot.
type HealthStatus struct {
	Status         string `json:"status"`
	EmbeddingModel string `json:"embedding_model"`
	DocsIndexed    int    `json:"docs_indexed"`
}

func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, "", false)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var decoded HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return HealthStatus{}, fmt.Errorf("decode health response: %w", err)
	}

	return decoded, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, authed bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request payload: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", authed)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, authed bool) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	if authed {
		token, err := c.tokens.Get(ctx)
		if err != nil {
			return nil, err
		}
		request.Header.Set("Authorization", "Bearer "+token)
	}

	reqID := uuid.NewString()[:8]
	start := time.Now()
	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}

	c.log.Debug().
		Str("req", reqID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("campusqa request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, statusToError(resp.StatusCode, raw)
	}

	return resp, nil
}

func statusToError(status int, body []byte) error {
	detail := extractDetail(body)

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrAuthExpired, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrPasswordRequired, detail)
	}

	return &domain.ServiceError{StatusCode: status, Detail: detail}
}

// extractDetail pulls the "detail" field out of a structured error body,
// falling back to the trimmed raw text.
func extractDetail(body []byte) string {
	var structured struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Detail) > 0 {
		var text string
		if err := json.Unmarshal(structured.Detail, &text); err == nil {
			return text
		}
		return string(structured.Detail)
	}

	return strings.TrimSpace(string(body))
}

func isNotFound(err error) bool {
	var svcErr *domain.ServiceError
	return errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound
}

func toQueryPayload(req domain.QueryRequest) queryPayload {
	return queryPayload{
		Query:     req.Query,
		TopK:      req.TopK,
		SessionID: string(req.SessionID),
		Streaming: req.Streaming,
	}
}

func fromSourceSchemas(entries []sourceSchema) []domain.SourceAttribution {
	if len(entries) == 0 {
		return nil
	}

	sources := make([]domain.SourceAttribution, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, domain.SourceAttribution{
			Source:  entry.Source,
			Snippet: entry.Snippet,
			Score:   entry.Score,
		})
	}

	return sources
}

func fromSummarySchema(entry sessionSummarySchema) domain.SessionSummary {
	return domain.SessionSummary{
		ID:           domain.SessionID(entry.SessionID),
		Title:        entry.Title,
		LastMessage:  entry.LastMessage,
		CreatedAt:    unixTime(entry.CreatedAt),
		UpdatedAt:    unixTime(entry.UpdatedAt),
		MessageCount: entry.MessageCount,
	}
}

func unixTime(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(int64(seconds), int64((seconds-float64(int64(seconds)))*float64(time.Second))).UTC()
}
