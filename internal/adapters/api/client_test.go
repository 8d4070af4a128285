package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusqa/campusqa-cli/internal/domain"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Get(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s staticTokens) Put(context.Context, string) error { return nil }

func (s staticTokens) Clear(context.Context) error { return nil }

func newTestClient(t *testing.T, handler http.Handler, tokens staticTokens) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(server.URL, server.Client(), tokens, zerolog.Nop())
}

func TestQueryDecodesAnswerAndMeta(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"图书馆8点开门","sources":[{"source":"校历.pdf","snippet":"开馆","score":0.9}],"latency_ms":88}`))
	}), staticTokens{token: "tok-1"})

	resp, err := client.Query(context.Background(), domain.QueryRequest{Query: "图书馆几点开门"})
	require.NoError(t, err)
	assert.Equal(t, "图书馆8点开门", resp.Answer)
	require.Len(t, resp.Meta.Sources, 1)
	assert.Equal(t, "校历.pdf", resp.Meta.Sources[0].Source)
	require.NotNil(t, resp.Meta.LatencyMS)
	assert.Equal(t, 88.0, *resp.Meta.LatencyMS)
}

func TestQueryStreamDecodesFramesAndMeta(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("你好\n__META__{\"sources\":[],\"latency_ms\":7}"))
	}), staticTokens{token: "tok-1"})

	stream, err := client.QueryStream(context.Background(), domain.QueryRequest{Query: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	frame, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "你好", frame.Content)

	frame, err = stream.Next()
	require.NoError(t, err)
	require.True(t, frame.IsMeta())
	require.NotNil(t, frame.Meta.LatencyMS)
	assert.Equal(t, 7.0, *frame.Meta.LatencyMS)
}

func TestProtectedCallWithoutTokenFailsFast(t *testing.T) {
	t.Parallel()

	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}), staticTokens{err: domain.ErrNoCredential})

	_, err := client.Query(context.Background(), domain.QueryRequest{Query: "hi"})
	require.ErrorIs(t, err, domain.ErrNoCredential)
	assert.False(t, called)
}

func TestUnauthorizedMapsToAuthExpired(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token expired"}`))
	}), staticTokens{token: "tok-1"})

	_, err := client.Query(context.Background(), domain.QueryRequest{Query: "hi"})
	require.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.ErrorContains(t, err, "token expired")
}

func TestForbiddenMapsToPasswordRequired(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"must change initial password"}`))
	}), staticTokens{token: "tok-1"})

	_, err := client.Query(context.Background(), domain.QueryRequest{Query: "hi"})
	require.ErrorIs(t, err, domain.ErrPasswordRequired)
}

func TestServerErrorCarriesDetail(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"vector store unavailable"}`))
	}), staticTokens{token: "tok-1"})

	_, err := client.Query(context.Background(), domain.QueryRequest{Query: "hi"})
	require.Error(t, err)

	var svcErr *domain.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, "vector store unavailable", svcErr.Detail)
}

func TestServerErrorNonJSONBodyFallsBackToRawDetail(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down\n"))
	}), staticTokens{token: "tok-1"})

	_, err := client.Query(context.Background(), domain.QueryRequest{Query: "hi"})

	var svcErr *domain.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "upstream down", svcErr.Detail)
}

func TestSessionEndpointsMapNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"session not found"}`))
	}), staticTokens{token: "tok-1"})

	_, err := client.RenameSession(context.Background(), "missing", "t")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = client.DeleteSession(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = client.SessionHistory(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestListSessionsDecodesSummaries(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/session", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessions":[{"session_id":"sess-1","title":"宿舍","last_message":"好的","created_at":1756600000.5,"updated_at":1756600100.5,"message_count":6}]}`))
	}), staticTokens{token: "tok-1"})

	summaries, err := client.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.SessionID("sess-1"), summaries[0].ID)
	assert.Equal(t, "宿舍", summaries[0].Title)
	assert.Equal(t, 6, summaries[0].MessageCount)
	assert.Equal(t, int64(1756600100), summaries[0].UpdatedAt.Unix())
}

func TestSessionHistoryDecodesMessages(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/session/sess-1/history", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"sess-1","title":"宿舍","history":[{"role":"user","content":"几点断电","created_at":1756600000},{"role":"assistant","content":"23:30","created_at":1756600002}]}`))
	}), staticTokens{token: "tok-1"})

	history, err := client.SessionHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("sess-1"), history.ID)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, domain.RoleUser, history.Messages[0].Role)
	assert.Equal(t, "23:30", history.Messages[1].Content)
}

func TestLoginSendsFormAndDecodesResult(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.PostFormValue("username"))
		assert.Equal(t, "secret", r.PostFormValue("password"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-new","must_change_password":true,"role":"student"}`))
	}), staticTokens{})

	result, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-new", result.Token)
	assert.True(t, result.MustChangePassword)
	assert.Equal(t, "student", result.Role)
}

func TestLoginWrongCredentialsIsNotAuthExpired(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"用户名或密码错误"}`))
	}), staticTokens{})

	_, err := client.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAuthExpired)

	var svcErr *domain.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "用户名或密码错误", svcErr.Detail)
}

func TestChangePasswordPostsForm(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/change_password", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "newpass99", r.PostFormValue("new_password"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}), staticTokens{token: "tok-1"})

	require.NoError(t, client.ChangePassword(context.Background(), "newpass99"))
}

func TestHealthDoesNotRequireToken(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","embedding_model":"bge-m3","docs_indexed":42}`))
	}), staticTokens{err: domain.ErrNoCredential})

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 42, status.DocsIndexed)
}
