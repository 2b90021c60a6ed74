package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// ChatErrorResponse is returned when a chat turn aborts
// @Description Failed chat turn
type ChatErrorResponse struct {
	Error               string `json:"error" example:"assistant could not read your records right now"`
	Kind                string `json:"kind" example:"retrieval"`
	ConversationID      string `json:"conversationId,omitempty"`
	UserMessageRecorded bool   `json:"userMessageRecorded"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports dependency health
// @Description Readiness status with per-dependency checks
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ConversationCreatedResponse carries a new conversation id
// @Description Newly created conversation
type ConversationCreatedResponse struct {
	ConversationID string `json:"conversationId" example:"0190f3a2-7c1e-7d4b-9a55-2f3e8c1d9b70"`
}

// IndexRefreshResponse reports a completed index rebuild
// @Description Index refresh result
type IndexRefreshResponse struct {
	Status    string `json:"status" example:"refreshed"`
	Documents int    `json:"documents" example:"42"`
}

// AssistantStatusResponse reports assistant capabilities
// @Description Assistant capability and cache status
type AssistantStatusResponse struct {
	EmbeddingAvailable bool `json:"embeddingAvailable"`
	LLMAvailable       bool `json:"llmAvailable"`
	CanChat            bool `json:"canChat"`
	CachedUsers        int  `json:"cachedUsers"`
	InFlightBuilds     int  `json:"inFlightBuilds"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			return
		}
		resp.Checks[name] = "ok"
	}
	check("postgres", s.db)
	check("redis", s.redisClient)

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			s.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authService.Logout(r.Context(), extractBearerToken(r)); err != nil {
		s.logger.Warn("logout failed", "error", err)
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleGetMe godoc
// @Summary      Get current session
// @Description  Returns the identity, currency and plan carried by the token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AuthContext
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetAuthContext(r.Context()))
}

// Assistant endpoints

// handleChat godoc
// @Summary      Ask the assistant
// @Description  Runs one chat turn grounded in the caller's products, sales and debts. An optional base64 image is analysed and added to the retrieval query.
// @Tags         Assistant
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.ChatRequest  true  "Chat turn"
// @Success      200      {object}  domain.ChatResponse
// @Failure      400      {object}  ErrorResponse      "Empty message"
// @Failure      402      {object}  ErrorResponse      "Plan does not include the assistant"
// @Failure      403      {object}  ErrorResponse      "Conversation owned by another user"
// @Failure      502      {object}  ChatErrorResponse  "Generation failed"
// @Failure      503      {object}  ChatErrorResponse  "Retrieval unavailable"
// @Router       /assistant/chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req domain.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Currency = authCtx.Currency

	resp, err := s.chatService.HandleTurn(r.Context(), authCtx.UserID, req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCreateConversation godoc
// @Summary      Start a conversation
// @Tags         Assistant
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  ConversationCreatedResponse
// @Failure      402  {object}  ErrorResponse  "Plan does not include the assistant"
// @Router       /assistant/conversations [post]
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	id, err := s.chatService.CreateConversation(r.Context(), authCtx.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ConversationCreatedResponse{ConversationID: id})
}

// handleGetConversation godoc
// @Summary      Read a conversation
// @Tags         Assistant
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Conversation ID"
// @Success      200  {object}  domain.Conversation
// @Failure      403  {object}  ErrorResponse  "Conversation owned by another user"
// @Failure      404  {object}  ErrorResponse  "Conversation not found"
// @Router       /assistant/conversations/{id} [get]
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	conv, err := s.chatService.GetConversation(r.Context(), authCtx.UserID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// handleRefreshIndex godoc
// @Summary      Rebuild the assistant index
// @Description  Re-reads the caller's records and replaces the cached index. On failure the previous index stays in use.
// @Tags         Assistant
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  IndexRefreshResponse
// @Failure      503  {object}  ErrorResponse  "Retrieval unavailable"
// @Router       /assistant/index/refresh [post]
func (s *Server) handleRefreshIndex(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	if err := s.indexService.Refresh(r.Context(), authCtx.UserID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	n, err := s.indexService.Warm(r.Context(), authCtx.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IndexRefreshResponse{Status: "refreshed", Documents: n})
}

// handleAssistantStatus godoc
// @Summary      Assistant status
// @Description  Reports whether embedding and generation are configured and how many indexes are cached
// @Tags         Assistant
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  AssistantStatusResponse
// @Router       /assistant/status [get]
func (s *Server) handleAssistantStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.services.Config()
	stats := s.indexService.Stats()

	writeJSON(w, http.StatusOK, AssistantStatusResponse{
		EmbeddingAvailable: cfg.EmbeddingAvailable(),
		LLMAvailable:       cfg.LLMAvailable(),
		CanChat:            cfg.CanChat(),
		CachedUsers:        stats.CachedUsers,
		InFlightBuilds:     stats.InFlightBuilds,
	})
}

// Helper functions

// decode reads a size-capped JSON body, writing 400/413 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes.
// Chat failures keep their conversation id so clients can retry in place.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var chatErr *domain.ChatError
	if errors.As(err, &chatErr) {
		status, msg := http.StatusBadGateway, "assistant could not generate an answer right now"
		if chatErr.Kind == domain.ChatErrorRetrieval {
			status, msg = http.StatusServiceUnavailable, "assistant could not read your records right now"
		}
		writeJSON(w, status, ChatErrorResponse{
			Error:               msg,
			Kind:                string(chatErr.Kind),
			ConversationID:      chatErr.ConversationID,
			UserMessageRecorded: chatErr.UserMessageRecorded,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "message or image is required")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "conversation belongs to another user")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrRetrievalUnavailable), errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "assistant index unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
