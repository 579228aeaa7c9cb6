package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/data/aggregates"
	billingrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/billing"
	chatrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/chat"
	"github.com/yungbote/chatgateway-backend/internal/data/repos/testutil"
	userrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/user"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/mock"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
	"github.com/yungbote/chatgateway-backend/internal/inference/tokenizer"
	httpH "github.com/yungbote/chatgateway-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatgateway-backend/internal/http/middleware"
	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/services/auth"
	"github.com/yungbote/chatgateway-backend/internal/services/deferred"
	"github.com/yungbote/chatgateway-backend/internal/services/orchestrator"
	"github.com/yungbote/chatgateway-backend/internal/services/quota"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
	"github.com/yungbote/chatgateway-backend/internal/services/titles"
)

const goodGoogleToken = "google-id-token"

type stubVerifier struct{}

func (stubVerifier) VerifyGoogleIDToken(_ context.Context, idToken string) (*auth.GoogleIdentity, error) {
	if idToken != goodGoogleToken {
		return nil, auth.ErrInvalidSession
	}
	return &auth.GoogleIdentity{Sub: "sub-1", Email: "ada@example.com", EmailVerified: true, Name: "Ada"}, nil
}

type testServer struct {
	router   *gin.Engine
	engine   *mock.Engine
	sessions *auth.Sessions
	gate     quota.Gate
}

func newTestServer(t *testing.T, allotment int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	s := &testServer{engine: mock.New()}
	engines := map[registry.Vendor]engine.Engine{}
	for _, v := range registry.Vendors {
		engines[v] = s.engine
	}
	reg, err := registry.New(registry.DefaultCatalog(), "", engines)
	require.NoError(t, err)
	counters := map[registry.Vendor]tokenizer.Counter{}
	for _, v := range registry.Vendors {
		counters[v] = tokenizer.RatioCounter(4, 1)
	}

	s.sessions, err = auth.NewSessions("test-secret", time.Hour)
	require.NoError(t, err)
	authSvc := auth.NewService(log, stubVerifier{}, s.sessions, userrepo.NewUserRepo(db, log))

	runner := deferred.Inline{Timeout: time.Second}
	rec := recorder.New(log, aggregates.NewGormTxRunner(db), chatrepo.NewThreadRepo(db, log), chatrepo.NewTurnRepo(db, log))
	s.gate = quota.NewGate(log, reg, billingrepo.NewLedgerRepo(db, log), billingrepo.NewSubscriptionRepo(db, log), nil, allotment)
	orch := orchestrator.New(orchestrator.Deps{
		Log:            log,
		Models:         reg,
		Usage:          tokenizer.New(reg, counters),
		Gate:           s.gate,
		Recorder:       rec,
		Deferred:       runner,
		PersistTimeout: time.Second,
	})

	metrics := observability.NewMetrics()
	s.router = NewRouter(RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, s.sessions),
		AuthHandler:    httpH.NewAuthHandler(authSvc),
		ChatHandler:    httpH.NewChatHandler(log, orch, rec, titles.New(log, reg, rec, runner)),
		HealthHandler:  httpH.NewHealthHandler(metrics),
	})
	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := s.sessions.IssueSession(auth.Identity{UserID: userID, Email: "u@example.com"})
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

func sseEvents(t *testing.T, body string) []orchestrator.Event {
	t.Helper()
	var out []orchestrator.Event
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev orchestrator.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		out = append(out, ev)
	}
	return out
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t, 20)
	rec := s.do(t, http.MethodGet, "/healthcheck", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGoogleLoginThenVerify(t *testing.T) {
	s := newTestServer(t, 20)

	rec := s.do(t, http.MethodGet, "/auth/google", goodGoogleToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "bearer", login.TokenType)

	rec = s.do(t, http.MethodGet, "/verify", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		TokenInfo map[string]any `json:"token_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verify))
	assert.Equal(t, "ada@example.com", verify.TokenInfo["email"])
	assert.NotEmpty(t, verify.TokenInfo["sub"])

	rec = s.do(t, http.MethodGet, "/auth/google", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, rec))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, 20)
	for _, path := range []string{"/verify", "/v1/chat_history"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthenticated", errorCode(t, rec), path)
	}
	rec := s.do(t, http.MethodGet, "/v1/chat_history", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueryTokenIsAccepted(t *testing.T) {
	s := newTestServer(t, 20)
	rec := s.do(t, http.MethodGet, "/v1/chat_history?token="+s.token(t, uuid.New()), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestChatReturnsWholeReply(t *testing.T) {
	s := newTestServer(t, 20)
	s.engine.Fragments = []string{"Hel", "lo"}
	tok := s.token(t, uuid.New())

	rec := s.do(t, http.MethodPost, "/v1/chat", tok, map[string]any{"user_input": "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Response string `json:"response"`
		ChatID   string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Hello", body.Response)
	_, err := uuid.Parse(body.ChatID)
	assert.NoError(t, err)
}

func TestChatStreamFramesEvents(t *testing.T) {
	s := newTestServer(t, 20)
	s.engine.Fragments = []string{"a", "b", "c"}
	userID := uuid.New()
	tok := s.token(t, userID)

	rec := s.do(t, http.MethodPost, "/v1/chat_event_streaming", tok, map[string]any{
		"user_input":   "abc please",
		"chat_history": []map[string]string{{"user_message": "hi", "ai_message": "hello"}},
		"chat_model":   "gpt-3.5-turbo",
		"temperature":  0.3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.True(t, strings.HasPrefix(rec.Body.String(), `data: {"event":"stream","data":"a","is_final":false}`+"\n\n"))

	events := sseEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	final := events[3]
	assert.True(t, final.IsFinal)
	assert.Empty(t, final.Data)
	require.NotEmpty(t, final.ChatID)

	calls := s.engine.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0.3, calls[0].Opts.Temperature)
	require.Len(t, calls[0].Messages, 3)

	rec = s.do(t, http.MethodGet, "/v1/chat_history/"+final.ChatID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var thread struct {
		Chat struct {
			ChatID string `json:"chat_id"`
		} `json:"chat"`
		Turns []struct {
			UserMessage string `json:"user_message"`
			AIMessage   string `json:"ai_message"`
		} `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
	assert.Equal(t, final.ChatID, thread.Chat.ChatID)
	require.Len(t, thread.Turns, 1)
	assert.Equal(t, "abc please", thread.Turns[0].UserMessage)
	assert.Equal(t, "abc", thread.Turns[0].AIMessage)

	rec = s.do(t, http.MethodGet, "/v1/chat_history/"+final.ChatID, s.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))
}

func TestChatStreamErrorsBeforeFirstFragmentAreJSON(t *testing.T) {
	s := newTestServer(t, 0)
	tok := s.token(t, uuid.New())

	rec := s.do(t, http.MethodPost, "/v1/chat_event_streaming", tok, map[string]any{"user_input": "hi"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "quota_exhausted", errorCode(t, rec))
	assert.Empty(t, s.engine.Calls())

	rec = s.do(t, http.MethodPost, "/v1/chat_event_streaming", tok, map[string]any{"user_input": "hi", "chat_model": "gpt-5-ultra"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_model", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/v1/chat_event_streaming", tok, map[string]any{"user_input": "hi", "chat_model": "gpt-4"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "subscription_required", errorCode(t, rec))
}

func TestChatValidatesBody(t *testing.T) {
	s := newTestServer(t, 20)
	tok := s.token(t, uuid.New())

	cases := map[string]map[string]any{
		"missing input":     {"chat_model": "gpt-3.5-turbo"},
		"temperature high":  {"user_input": "hi", "temperature": 2.5},
		"temperature low":   {"user_input": "hi", "temperature": -0.1},
		"malformed chat id": {"user_input": "hi", "chat_id": "nope"},
	}
	for name, body := range cases {
		rec := s.do(t, http.MethodPost, "/v1/chat", tok, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "invalid_request", errorCode(t, rec), name)
	}
	assert.Empty(t, s.engine.Calls())
}

func TestChatTitleIsAccepted(t *testing.T) {
	s := newTestServer(t, 20)
	s.engine.Fragments = []string{"Greeting"}
	tok := s.token(t, uuid.New())

	rec := s.do(t, http.MethodPost, "/v1/chat", tok, map[string]any{"user_input": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	var chatResp struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chatResp))

	rec = s.do(t, http.MethodPost, "/v1/chat_title", tok, map[string]any{"chat_id": chatResp.ChatID})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/chat_history?page=1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ChatID string `json:"chat_id"`
		Title  string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Greeting", list[0].Title)

	rec = s.do(t, http.MethodGet, "/v1/chat_history?page=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentRoutesDisabled(t *testing.T) {
	s := newTestServer(t, 20)
	tok := s.token(t, uuid.New())
	for _, r := range []struct{ method, path string }{
		{http.MethodPost, "/v1/create_order"},
		{http.MethodPost, "/v1/verify_payment"},
		{http.MethodGet, "/v1/fetch_payments"},
		{http.MethodGet, "/v1/fetch_payment/pay_1"},
	} {
		rec := s.do(t, r.method, r.path, tok, map[string]any{})
		assert.Equal(t, http.StatusForbidden, rec.Code, r.path)
		assert.Equal(t, "payments_disabled", errorCode(t, rec), r.path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 20)
	s.do(t, http.MethodGet, "/healthcheck", "", nil)
	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `chatgw_api_requests_total{method="GET",route="/healthcheck",status="200"} 1`)
}
