package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "valid bearer token",
			header:   "Bearer abc123",
			expected: "abc123",
		},
		{
			name:     "bearer with extra spaces",
			header:   "Bearer   token-with-spaces   ",
			expected: "token-with-spaces",
		},
		{
			name:     "lowercase bearer",
			header:   "bearer token123",
			expected: "token123",
		},
		{
			name:     "empty header",
			header:   "",
			expected: "",
		},
		{
			name:     "no bearer prefix",
			header:   "token123",
			expected: "",
		},
		{
			name:     "basic auth",
			header:   "Basic dXNlcjpwYXNz",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			result := extractBearerToken(req)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	if GetAuthContext(context.Background()) != nil {
		t.Error("expected nil for context without auth")
	}

	authCtx := basicUser()
	ctx := context.WithValue(context.Background(), authContextKey, authCtx)
	if got := GetAuthContext(ctx); got != authCtx {
		t.Errorf("expected stored auth context, got %+v", got)
	}

	ctx = context.WithValue(context.Background(), authContextKey, "not an auth context")
	if GetAuthContext(ctx) != nil {
		t.Error("expected nil for wrong value type")
	}
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		validateErr error
		wantStatus  int
		wantMessage string
	}{
		{name: "missing token", wantStatus: http.StatusUnauthorized, wantMessage: "missing authorization token"},
		{name: "expired", header: "Bearer t", validateErr: domain.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantMessage: "token expired"},
		{name: "session gone", header: "Bearer t", validateErr: domain.ErrSessionNotFound, wantStatus: http.StatusUnauthorized, wantMessage: "session not found"},
		{name: "invalid", header: "Bearer t", validateErr: domain.ErrTokenInvalid, wantStatus: http.StatusUnauthorized, wantMessage: "invalid token"},
		{name: "wrapped expiry", header: "Bearer t", validateErr: errors.Join(errors.New("parse"), domain.ErrTokenExpired), wantStatus: http.StatusUnauthorized, wantMessage: "token expired"},
		{name: "valid", header: "Bearer t", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuthService{
				validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
					if tt.validateErr != nil {
						return nil, tt.validateErr
					}
					return basicUser(), nil
				},
			}
			var seen *domain.AuthContext
			handler := NewAuthMiddleware(auth).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetAuthContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantMessage != "" {
				if resp := decodeBody[ErrorResponse](t, rr); resp.Error != tt.wantMessage {
					t.Errorf("expected %q, got %q", tt.wantMessage, resp.Error)
				}
				return
			}
			if seen == nil || seen.UserID != "user-1" {
				t.Errorf("expected auth context for user-1, got %+v", seen)
			}
		})
	}
}

func TestAuthMiddleware_RequireActivePlan(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name       string
		authCtx    *domain.AuthContext
		wantStatus int
	}{
		{name: "no context", wantStatus: http.StatusUnauthorized},
		{name: "free", authCtx: &domain.AuthContext{Plan: domain.PlanFree}, wantStatus: http.StatusPaymentRequired},
		{name: "basic without expiry", authCtx: &domain.AuthContext{Plan: domain.PlanBasic}, wantStatus: http.StatusOK},
		{name: "pro lapsed", authCtx: &domain.AuthContext{Plan: domain.PlanPro, PlanExpiresAt: &past}, wantStatus: http.StatusPaymentRequired},
		{name: "pro current", authCtx: &domain.AuthContext{Plan: domain.PlanPro, PlanExpiresAt: &future}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(&mockAuthService{})
			m.now = func() time.Time { return now }
			handler := m.RequireActivePlan(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("POST", "/", nil)
			if tt.authCtx != nil {
				req = req.WithContext(context.WithValue(req.Context(), authContextKey, tt.authCtx))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest("POST", "/api/v1/assistant/chat", nil)
	req = req.WithContext(context.WithValue(req.Context(), authContextKey, basicUser()))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	out := buf.String()
	for _, want := range []string{"level=WARN", "path=/api/v1/assistant/chat", "status=502", "user_id=user-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got %s", want, out)
		}
	}
}

func TestLoggingMiddleware_DefaultsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if out := buf.String(); !strings.Contains(out, "level=INFO") || !strings.Contains(out, "status=200") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := NewRecoveryMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "test panic") {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}

func TestRecoveryMiddleware_ThroughServer(t *testing.T) {
	chat := &mockChatService{
		handleTurnFn: func(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
			panic("nil map")
		},
	}
	s := newTestServer(t, Deps{Chat: chat})

	rr := do(t, s, "POST", "/api/v1/assistant/chat", `{"message":"hi"}`, true)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.ledgerwise.test"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantAllowed bool
	}{
		{name: "allowed origin", method: "GET", origin: "https://app.ledgerwise.test", wantStatus: http.StatusOK, wantAllowed: true},
		{name: "preflight", method: "OPTIONS", origin: "https://app.ledgerwise.test", wantStatus: http.StatusNoContent, wantAllowed: true},
		{name: "other origin", method: "GET", origin: "https://evil.test", wantStatus: http.StatusOK},
		{name: "no origin", method: "GET", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			got := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed && got != tt.origin {
				t.Errorf("expected allow origin %q, got %q", tt.origin, got)
			}
			if !tt.wantAllowed && got != "" {
				t.Errorf("expected no allow origin header, got %q", got)
			}
		})
	}
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rr.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin")
	}
}

func TestResponseWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("expected status code 404, got %d", rw.statusCode)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected recorder status 404, got %d", rr.Code)
	}
}

func TestTracingMiddleware_RequestID(t *testing.T) {
	var seen string
	handler := NewTracingMiddleware().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("expected generated id echoed, got ctx=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "till-42")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen != "till-42" || rr.Header().Get("X-Request-ID") != "till-42" {
		t.Errorf("expected incoming id kept, got %q", seen)
	}
}

func TestLoggingMiddleware_ThroughServer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := newTestServer(t, Deps{})
	handler := NewTracingMiddleware().Handler(NewLoggingMiddleware(logger).Handler(s.router))

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("X-Request-ID", "req-7")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	out := buf.String()
	for _, want := range []string{"user_id=user-1", "request_id=req-7", "status=200"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got %s", want, out)
		}
	}
}
