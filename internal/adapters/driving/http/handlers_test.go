package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven/mocks"
	"github.com/ledgerwise/ledgerwise-core/internal/runtime"
)

// Mock services for testing

type mockAuthService struct {
	authenticateFn  func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
	logoutFn        func(ctx context.Context, token string) error
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) LogoutAll(ctx context.Context, userID string) error {
	return nil
}

type mockChatService struct {
	handleTurnFn func(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error)
	createFn     func(ctx context.Context, userID string) (string, error)
	getFn        func(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
}

func (m *mockChatService) HandleTurn(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if m.handleTurnFn != nil {
		return m.handleTurnFn(ctx, userID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChatService) CreateConversation(ctx context.Context, userID string) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID)
	}
	return "", errors.New("not implemented")
}

func (m *mockChatService) GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, conversationID)
	}
	return nil, errors.New("not implemented")
}

type mockIndexService struct {
	refreshFn func(ctx context.Context, userID string) error
	warmFn    func(ctx context.Context, userID string) (int, error)
	stats     domain.IndexStats
}

func (m *mockIndexService) Warm(ctx context.Context, userID string) (int, error) {
	if m.warmFn != nil {
		return m.warmFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockIndexService) Retrieve(ctx context.Context, userID, query string, k int) ([]domain.ScoredDocument, error) {
	return nil, nil
}

func (m *mockIndexService) Refresh(ctx context.Context, userID string) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, userID)
	}
	return nil
}

func (m *mockIndexService) Evict(userID string) {}

func (m *mockIndexService) Stats() domain.IndexStats {
	return m.stats
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// Test helpers

func basicUser() *domain.AuthContext {
	return &domain.AuthContext{
		UserID:    "user-1",
		Email:     "owner@shop.test",
		Currency:  "EUR",
		Plan:      domain.PlanBasic,
		SessionID: "session-1",
	}
}

// tokenAuth accepts "good-token" for authCtx and rejects everything else
func tokenAuth(authCtx *domain.AuthContext) *mockAuthService {
	return &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			if token == "good-token" {
				return authCtx, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Auth == nil {
		deps.Auth = tokenAuth(basicUser())
	}
	if deps.Chat == nil {
		deps.Chat = &mockChatService{}
	}
	if deps.Index == nil {
		deps.Index = &mockIndexService{}
	}
	if deps.Services == nil {
		deps.Services = runtime.NewServices(domain.NewRuntimeConfig("memory"))
	}
	cfg := DefaultConfig()
	cfg.Version = "test"
	return NewServer(cfg, deps)
}

func do(t *testing.T, s *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer good-token")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

// Health endpoints

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, Deps{})

	rr := do(t, s, "GET", "/health", "", false)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeBody[StatusResponse](t, rr); resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		redis      Pinger
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         &mockPinger{},
			redis:      &mockPinger{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "redis optional",
			db:         &mockPinger{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok"},
		},
		{
			name:       "database down",
			db:         &mockPinger{err: errors.New("connection refused")},
			redis:      &mockPinger{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "connection refused", "redis": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{DB: tt.db}
			if tt.redis != nil {
				deps.Redis = tt.redis
			}
			s := newTestServer(t, deps)

			rr := do(t, s, "GET", "/ready", "", false)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			resp := decodeBody[ReadyResponse](t, rr)
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("check %s: expected %q, got %q", k, v, resp.Checks[k])
				}
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Errorf("expected %d checks, got %v", len(tt.wantChecks), resp.Checks)
			}
		})
	}
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(t, Deps{})

	rr := do(t, s, "GET", "/version", "", false)

	if resp := decodeBody[VersionResponse](t, rr); resp.Version != "test" {
		t.Errorf("expected version test, got %s", resp.Version)
	}
}

// Auth endpoints

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		authErr    error
		wantStatus int
	}{
		{name: "success", body: `{"email":"a@b.test","password":"pw"}`, wantStatus: http.StatusOK},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing fields", body: `{}`, authErr: domain.ErrInvalidInput, wantStatus: http.StatusBadRequest},
		{name: "wrong password", body: `{"email":"a@b.test","password":"x"}`, authErr: domain.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "disabled", body: `{"email":"a@b.test","password":"pw"}`, authErr: domain.ErrUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "store failure", body: `{"email":"a@b.test","password":"pw"}`, authErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuthService{
				authenticateFn: func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
					if tt.authErr != nil {
						return nil, tt.authErr
					}
					return &domain.LoginResponse{Token: "jwt", ExpiresAt: time.Now().Add(time.Hour)}, nil
				},
			}
			s := newTestServer(t, Deps{Auth: auth})

			rr := do(t, s, "POST", "/api/v1/auth/login", tt.body, false)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleLogout(t *testing.T) {
	var loggedOut string
	auth := tokenAuth(basicUser())
	auth.logoutFn = func(ctx context.Context, token string) error {
		loggedOut = token
		return nil
	}
	s := newTestServer(t, Deps{Auth: auth})

	rr := do(t, s, "POST", "/api/v1/auth/logout", "", true)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if loggedOut != "good-token" {
		t.Errorf("expected logout of good-token, got %q", loggedOut)
	}
}

func TestHandleGetMe(t *testing.T) {
	s := newTestServer(t, Deps{})

	rr := do(t, s, "GET", "/api/v1/me", "", true)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	me := decodeBody[domain.AuthContext](t, rr)
	if me.UserID != "user-1" || me.Currency != "EUR" {
		t.Errorf("unexpected identity: %+v", me)
	}
}

// Assistant endpoints

func TestHandleChat_Success(t *testing.T) {
	var gotUser string
	var gotReq domain.ChatRequest
	chat := &mockChatService{
		handleTurnFn: func(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
			gotUser, gotReq = userID, req
			return &domain.ChatResponse{
				Response:       "You have 5 red shirts.",
				ConversationID: "conv-1",
				Sources:        []string{domain.SourceUserData},
				Timestamp:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	s := newTestServer(t, Deps{Chat: chat})

	rr := do(t, s, "POST", "/api/v1/assistant/chat",
		`{"message":"how many red shirts","conversationId":"conv-1","currency":"USD"}`, true)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotUser != "user-1" {
		t.Errorf("expected user-1, got %s", gotUser)
	}
	if gotReq.Currency != "EUR" {
		t.Errorf("expected currency from token, got %q", gotReq.Currency)
	}
	if gotReq.ConversationID != "conv-1" || gotReq.Message != "how many red shirts" {
		t.Errorf("unexpected request: %+v", gotReq)
	}

	var raw map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"response", "conversationId", "sources", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected %q in response body %s", key, rr.Body.String())
		}
	}
	if raw["timestamp"] != "2026-10-19T12:00:00Z" {
		t.Errorf("expected ISO-8601 timestamp, got %v", raw["timestamp"])
	}
}

func TestHandleChat_Errors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantKind     string
		wantRecorded bool
	}{
		{
			name:       "retrieval unavailable",
			err:        domain.NewRetrievalError("conv-1", false, errors.New("embedding down")),
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   "retrieval",
		},
		{
			name:         "generation failed",
			err:          domain.NewGenerationError("conv-1", true, context.DeadlineExceeded),
			wantStatus:   http.StatusBadGateway,
			wantKind:     "generation",
			wantRecorded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &mockChatService{
				handleTurnFn: func(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(t, Deps{Chat: chat})

			rr := do(t, s, "POST", "/api/v1/assistant/chat", `{"message":"hi"}`, true)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			resp := decodeBody[ChatErrorResponse](t, rr)
			if resp.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, resp.Kind)
			}
			if resp.ConversationID != "conv-1" {
				t.Errorf("expected conversation id conv-1, got %q", resp.ConversationID)
			}
			if resp.UserMessageRecorded != tt.wantRecorded {
				t.Errorf("expected userMessageRecorded %v, got %v", tt.wantRecorded, resp.UserMessageRecorded)
			}
			if strings.Contains(rr.Body.String(), "embedding down") {
				t.Error("internal cause leaked into response")
			}
		})
	}
}

func TestHandleChat_ClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "bad json", body: `nope`, wantStatus: http.StatusBadRequest},
		{name: "empty message", body: `{"message":""}`, err: domain.ErrInvalidInput, wantStatus: http.StatusBadRequest},
		{name: "foreign conversation", body: `{"message":"hi","conversationId":"x"}`, err: domain.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "unexpected", body: `{"message":"hi"}`, err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &mockChatService{
				handleTurnFn: func(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(t, Deps{Chat: chat})

			rr := do(t, s, "POST", "/api/v1/assistant/chat", tt.body, true)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestHandleChat_BodyTooLarge(t *testing.T) {
	chat := &mockChatService{
		handleTurnFn: func(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
			t.Error("service should not be called")
			return nil, nil
		},
	}
	deps := Deps{Auth: tokenAuth(basicUser()), Chat: chat, Index: &mockIndexService{},
		Services: runtime.NewServices(domain.NewRuntimeConfig("memory"))}
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 64
	s := NewServer(cfg, deps)

	body := `{"message":"hi","imageBase64":"` + strings.Repeat("A", 256) + `"}`
	rr := do(t, s, "POST", "/api/v1/assistant/chat", body, true)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rr.Code)
	}
}

func TestAssistantRoutes_RequireActivePlan(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	tests := []struct {
		name    string
		authCtx *domain.AuthContext
	}{
		{name: "free plan", authCtx: &domain.AuthContext{UserID: "u", Plan: domain.PlanFree}},
		{name: "expired subscription", authCtx: &domain.AuthContext{UserID: "u", Plan: domain.PlanPro, PlanExpiresAt: &expired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Deps{Auth: tokenAuth(tt.authCtx)})

			for _, route := range []struct{ method, path string }{
				{"POST", "/api/v1/assistant/chat"},
				{"POST", "/api/v1/assistant/conversations"},
				{"GET", "/api/v1/assistant/conversations/c-1"},
				{"POST", "/api/v1/assistant/index/refresh"},
			} {
				rr := do(t, s, route.method, route.path, `{"message":"hi"}`, true)
				if rr.Code != http.StatusPaymentRequired {
					t.Errorf("%s %s: expected 402, got %d", route.method, route.path, rr.Code)
				}
			}
		})
	}
}

func TestAssistantRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t, Deps{})

	rr := do(t, s, "POST", "/api/v1/assistant/chat", `{"message":"hi"}`, false)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleCreateConversation(t *testing.T) {
	chat := &mockChatService{
		createFn: func(ctx context.Context, userID string) (string, error) {
			return "conv-" + userID, nil
		},
	}
	s := newTestServer(t, Deps{Chat: chat})

	rr := do(t, s, "POST", "/api/v1/assistant/conversations", "", true)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if resp := decodeBody[ConversationCreatedResponse](t, rr); resp.ConversationID != "conv-user-1" {
		t.Errorf("unexpected conversation id %q", resp.ConversationID)
	}
}

func TestHandleGetConversation(t *testing.T) {
	chat := &mockChatService{
		getFn: func(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
			switch conversationID {
			case "mine":
				return &domain.Conversation{ID: "mine", UserID: userID, Messages: []domain.Message{
					{Role: domain.MessageRoleUser, Content: "hi"},
				}}, nil
			case "theirs":
				return nil, domain.ErrForbidden
			default:
				return nil, domain.ErrNotFound
			}
		},
	}
	s := newTestServer(t, Deps{Chat: chat})

	tests := map[string]int{
		"mine":    http.StatusOK,
		"theirs":  http.StatusForbidden,
		"missing": http.StatusNotFound,
	}
	for id, want := range tests {
		rr := do(t, s, "GET", "/api/v1/assistant/conversations/"+id, "", true)
		if rr.Code != want {
			t.Errorf("%s: expected status %d, got %d", id, want, rr.Code)
		}
	}
}

func TestHandleRefreshIndex(t *testing.T) {
	var refreshed string
	index := &mockIndexService{
		refreshFn: func(ctx context.Context, userID string) error {
			refreshed = userID
			return nil
		},
		warmFn: func(ctx context.Context, userID string) (int, error) {
			return 7, nil
		},
	}
	s := newTestServer(t, Deps{Index: index})

	rr := do(t, s, "POST", "/api/v1/assistant/index/refresh", "", true)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if refreshed != "user-1" {
		t.Errorf("expected refresh for user-1, got %q", refreshed)
	}
	if resp := decodeBody[IndexRefreshResponse](t, rr); resp.Documents != 7 {
		t.Errorf("expected 7 documents, got %d", resp.Documents)
	}
}

func TestHandleRefreshIndex_Unavailable(t *testing.T) {
	index := &mockIndexService{
		refreshFn: func(ctx context.Context, userID string) error {
			return errors.Join(domain.ErrRetrievalUnavailable, errors.New("records unavailable"))
		},
	}
	s := newTestServer(t, Deps{Index: index})

	rr := do(t, s, "POST", "/api/v1/assistant/index/refresh", "", true)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestHandleAssistantStatus(t *testing.T) {
	services := runtime.NewServices(domain.NewRuntimeConfig("memory"))
	services.SetEmbeddingService(mocks.NewMockEmbeddingService())
	index := &mockIndexService{stats: domain.IndexStats{CachedUsers: 3, InFlightBuilds: 1}}
	free := &domain.AuthContext{UserID: "u", Plan: domain.PlanFree}
	s := newTestServer(t, Deps{Auth: tokenAuth(free), Index: index, Services: services})

	rr := do(t, s, "GET", "/api/v1/assistant/status", "", true)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 without a plan, got %d", rr.Code)
	}
	resp := decodeBody[AssistantStatusResponse](t, rr)
	if !resp.EmbeddingAvailable || resp.LLMAvailable || resp.CanChat {
		t.Errorf("unexpected capabilities: %+v", resp)
	}
	if resp.CachedUsers != 3 || resp.InFlightBuilds != 1 {
		t.Errorf("unexpected stats: %+v", resp)
	}
}

func TestHandleSwaggerDoc_NotRegistered(t *testing.T) {
	s := newTestServer(t, Deps{})

	rr := do(t, s, "GET", "/swagger/doc.json", "", false)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 when docs are not linked in, got %d", rr.Code)
	}
}
