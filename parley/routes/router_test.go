package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parley/parley/config"
	"parley/parley/controllers"
	"parley/parley/services/auth"
	"parley/parley/services/llm"
	"parley/parley/sources/psql"
	"parley/parley/sources/psql/dao"
)

type testServer struct {
	handler   http.Handler
	llmCalls  *atomic.Int32
	llmStatus *atomic.Int32
	dao       *dao.TranscriptDAO
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, psql.Migrate(context.Background(), db))

	calls := &atomic.Int32{}
	status := &atomic.Int32{}
	status.Store(http.StatusOK)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			w.Write([]byte(`{"error":{"message":"model unavailable","type":"server_error"}}`))
			return
		}
		w.Write([]byte(`{"id":"c1","model":"test","choices":[{"index":0,"message":{"role":"assistant","content":"Hello! How can I help?"}}]}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Config{
		FrontendURL:       "http://localhost:3000",
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		MaxBodyBytes:      1 << 20,
	}
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	transcripts := dao.NewTranscriptDAO(db)
	gateway := llm.NewCompletionClient(llm.Options{APIKey: "k", BaseURL: upstream.URL + "/v1", Model: "test"})

	router := NewRouter(cfg, Handlers{
		Auth:   controllers.NewAuthController(tokens, nil),
		Chat:   controllers.NewChatController(transcripts, gateway),
		Health: controllers.NewHealthController(sqlDB),
		Tokens: tokens,
	})
	return &testServer{handler: router, llmCalls: calls, llmStatus: status, dao: transcripts}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
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
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), rr.Body.String())
	}
	return rr, decoded
}

func (s *testServer) login(t *testing.T, uid string) string {
	t.Helper()
	rr, body := s.do(t, http.MethodPost, "/api/auth/verify", "", map[string]any{
		"firebaseToken": "ignored",
		"user":          map[string]any{"uid": uid, "email": uid + "@b.com", "displayName": "A"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestEndToEndVerifyChatHistory(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodPost, "/api/auth/verify", "", map[string]any{
		"user": map[string]any{"uid": "u1", "email": "a@b.com", "displayName": "A"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"uid": "u1", "email": "a@b.com", "name": "A"}, body["user"])
	token := body["token"].(string)

	rr, body = s.do(t, http.MethodPost, "/api/chatbot", token, map[string]any{"queries": "hello", "sessionId": "s1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	reply := body["reply"].(string)
	assert.NotEmpty(t, reply)

	rr, body = s.do(t, http.MethodGet, "/api/chatbot/history/s1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	second := messages[1].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "hello", first["content"])
	assert.Equal(t, "assistant", second["role"])
	assert.Equal(t, reply, second["content"])
	assert.NotEmpty(t, first["timestamp"])

	rr, body = s.do(t, http.MethodGet, "/api/chatbot/sessions", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)
	session := sessions[0].(map[string]any)
	assert.Equal(t, "s1", session["sessionId"])
	assert.NotEmpty(t, session["id"])
	assert.NotEmpty(t, session["createdAt"])
	assert.Len(t, session["messages"], 2)

	rr, body = s.do(t, http.MethodDelete, "/api/chatbot/history/s1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])

	rr, body = s.do(t, http.MethodGet, "/api/chatbot/history/s1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, body["messages"])
}

func TestVerifyMissingUID(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodPost, "/api/auth/verify", "", map[string]any{"user": map[string]any{"email": "a@b.com"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotEmpty(t, body["error"])
	assert.Nil(t, body["details"])
}

func TestChatRequiresToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/chatbot/history/s1", "/api/chatbot/sessions"} {
		rr, body := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		assert.Equal(t, "No token provided. Please login.", body["error"])
	}
	rr, _ := s.do(t, http.MethodPost, "/api/chatbot", "garbage", map[string]any{"queries": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr, _ = s.do(t, http.MethodDelete, "/api/chatbot/history/s1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, s.llmCalls.Load())
}

func TestChatEmptyQueriesIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "u1")

	for _, body := range []map[string]any{{"sessionId": "s1"}, {"queries": "", "sessionId": "s1"}, {"queries": "  \n\t", "sessionId": "s1"}} {
		rr, resp := s.do(t, http.MethodPost, "/api/chatbot", token, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Queries are required.", resp["error"])
	}
	assert.Zero(t, s.llmCalls.Load())

	turns, err := s.dao.Read(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "u1")

	rr, body := s.do(t, http.MethodPost, "/api/chatbot", token, map[string]any{
		"queries":   strings.Repeat("a", 2<<20),
		"sessionId": "s1",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "Request body too large", body["error"])
	assert.Nil(t, body["details"])
	assert.Zero(t, s.llmCalls.Load())
}

func TestChatUpstreamFailure(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "u1")
	s.llmStatus.Store(http.StatusBadGateway)

	rr, body := s.do(t, http.MethodPost, "/api/chatbot", token, map[string]any{"queries": "hello", "sessionId": "s1"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["details"])

	turns, err := s.dao.Read(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestUsersCannotSeeEachOther(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	mallory := s.login(t, "mallory")

	rr, _ := s.do(t, http.MethodPost, "/api/chatbot", alice, map[string]any{"queries": "secret plan", "sessionId": "s1"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body := s.do(t, http.MethodGet, "/api/chatbot/history/s1", mallory, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, body["messages"])

	rr, body = s.do(t, http.MethodGet, "/api/chatbot/sessions", mallory, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, body["sessions"])

	rr, _ = s.do(t, http.MethodDelete, "/api/chatbot/history/s1", mallory, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body = s.do(t, http.MethodGet, "/api/chatbot/history/s1", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["messages"], 2)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrr := httptest.NewRecorder()
	s.handler.ServeHTTP(mrr, req)
	assert.Equal(t, http.StatusOK, mrr.Code)
	assert.Contains(t, mrr.Body.String(), "parley_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chatbot", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
