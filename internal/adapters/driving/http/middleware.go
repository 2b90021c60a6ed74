package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
	"github.com/ledgerwise/ledgerwise-core/internal/observability"
)

type contextKey string

const (
	authContextKey contextKey = "auth_context"
	requestIDKey   contextKey = "request_id"
	callerSlotKey  contextKey = "caller_slot"

	requestIDHeader = "X-Request-ID"
)

// ===== Authentication =====

// AuthMiddleware resolves bearer tokens and gates assistant routes on the
// caller's subscription plan
type AuthMiddleware struct {
	authService driving.AuthService
	now         func() time.Time
}

func NewAuthMiddleware(authService driving.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, now: time.Now}
}

// authFailure maps token validation errors to a client message
func authFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	default:
		return "invalid token"
	}
}

// Authenticate stores the caller's AuthContext on the request
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		authCtx, err := m.authService.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, authFailure(err))
			return
		}

		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("enduser.id", authCtx.UserID))
		recordCaller(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authContextKey, authCtx)))
	})
}

// RequireActivePlan answers 402 when the plan excludes the assistant or
// has lapsed. Must run after Authenticate.
func (m *AuthMiddleware) RequireActivePlan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r.Context())
		switch {
		case authCtx == nil:
			writeError(w, http.StatusUnauthorized, "unauthorized")
		case !authCtx.HasActivePlan(m.now()):
			writeError(w, http.StatusPaymentRequired, "active plan required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// GetAuthContext returns the caller set by Authenticate, or nil
func GetAuthContext(ctx context.Context) *domain.AuthContext {
	if ctx == nil {
		return nil
	}
	authCtx, _ := ctx.Value(authContextKey).(*domain.AuthContext)
	return authCtx
}

func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ===== Request tracing =====

// RequestID returns the id assigned by the tracing middleware, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// TracingMiddleware continues any incoming W3C trace, opens a server span
// per request and tags the request with an id echoed in X-Request-ID.
// With no exporter configured the global tracer is a no-op.
type TracingMiddleware struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func NewTracingMiddleware() *TracingMiddleware {
	return &TracingMiddleware{
		tracer:     otel.Tracer(observability.TracerName),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := m.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := m.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", id),
			),
		)
		defer span.End()

		rw := wrapResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(context.WithValue(ctx, requestIDKey, id)))

		span.SetAttributes(attribute.Int("http.response.status_code", rw.statusCode))
		if rw.statusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
		}
	})
}

// ===== Logging =====

// LoggingMiddleware writes one line per request. 5xx responses log at WARN.
type LoggingMiddleware struct {
	logger *slog.Logger
}

func NewLoggingMiddleware(logger *slog.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{logger: logger}
}

func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)

		// the auth context is attached further down the chain, so capture it
		// through a pointer the inner handler fills in
		var caller *domain.AuthContext
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), callerSlotKey, &caller)))
		if caller == nil {
			caller = GetAuthContext(r.Context())
		}

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.statusCode),
			slog.Int64("bytes", rw.written),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestID(r.Context()); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		}
		if caller != nil {
			attrs = append(attrs, slog.String("user_id", caller.UserID))
		}

		level := slog.LevelInfo
		if rw.statusCode >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		m.logger.LogAttrs(r.Context(), level, "http request", attrs...)
	})
}

// recordCaller hands the authenticated caller back to the logging
// middleware wrapping the request
func recordCaller(ctx context.Context, authCtx *domain.AuthContext) {
	if slot, ok := ctx.Value(callerSlotKey).(**domain.AuthContext); ok && slot != nil {
		*slot = authCtx
	}
}

// responseWriter remembers the status and body size for logs and spans
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// ===== Recovery =====

// RecoveryMiddleware turns a handler panic into a 500 and logs the stack
type RecoveryMiddleware struct {
	logger *slog.Logger
}

func NewRecoveryMiddleware(logger *slog.Logger) *RecoveryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryMiddleware{logger: logger}
}

func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			m.logger.Error("panic recovered",
				"error", rec,
				"path", r.URL.Path,
				"request_id", RequestID(r.Context()),
				"stack", string(debug.Stack()),
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// ===== CORS =====

// CORSMiddleware echoes allowed origins for the browser dashboard. "*"
// allows any origin.
type CORSMiddleware struct {
	allowedOrigins []string
}

func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	return &CORSMiddleware{allowedOrigins: allowedOrigins}
}

func (m *CORSMiddleware) allows(origin string) bool {
	return origin != "" && (slices.Contains(m.allowedOrigins, "*") || slices.Contains(m.allowedOrigins, origin))
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); m.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			h.Set("Access-Control-Expose-Headers", requestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
