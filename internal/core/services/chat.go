package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
	"github.com/ledgerwise/ledgerwise-core/internal/runtime"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// ChatConfig holds configuration for the chat service
type ChatConfig struct {
	TopK         int           // documents retrieved per turn, default 8
	HistoryLimit int           // messages rendered into the prompt, default 6
	TurnTimeout  time.Duration // bounds retrieval and generation, default 60s
	Logger       *slog.Logger
}

// DefaultChatConfig returns sensible defaults
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		TopK:         8,
		HistoryLimit: 6,
		TurnTimeout:  60 * time.Second,
	}
}

// chatService implements the ChatService interface
type chatService struct {
	index         driving.IndexService
	conversations driven.ConversationStore
	services      *runtime.Services
	config        ChatConfig
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewChatService creates a new ChatService.
// The LLM service is read from services on every turn.
func NewChatService(
	index driving.IndexService,
	conversations driven.ConversationStore,
	services *runtime.Services,
	cfg ChatConfig,
) driving.ChatService {
	def := DefaultChatConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = def.TurnTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &chatService{
		index:         index,
		conversations: conversations,
		services:      services,
		config:        cfg,
		logger:        logger.With("component", "chat"),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
	}
}

// CreateConversation starts an empty conversation owned by userID
func (s *chatService) CreateConversation(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrInvalidInput
	}
	return s.conversations.Create(ctx, userID)
}

// GetConversation returns a conversation if userID owns it
func (s *chatService) GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	if userID == "" || conversationID == "" {
		return nil, domain.ErrInvalidInput
	}

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID == "" && len(conv.Messages) == 0 {
		return nil, domain.ErrNotFound
	}
	if !conv.OwnedBy(userID) {
		return nil, domain.ErrForbidden
	}
	return conv, nil
}

// HandleTurn runs one grounded chat turn.
//
// The user's message is appended before retrieval and generation run, so a
// later failure leaves it in the history without an answer. The returned
// *domain.ChatError says whether that happened.
func (s *chatService) HandleTurn(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if userID == "" || (message == "" && !req.HasImage()) {
		return nil, domain.ErrInvalidInput
	}

	ctx, span := s.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("chat.image", req.HasImage()),
	))
	defer span.End()

	convID, err := s.resolveConversation(ctx, userID, req.ConversationID)
	if err != nil {
		span.RecordError(err)
		if isClientError(err) {
			return nil, err
		}
		s.logger.Warn("chat turn failed", "user_id", userID, "error", err)
		return nil, domain.NewRetrievalError(req.ConversationID, false, fmt.Errorf("resolve conversation: %w", err))
	}
	span.SetAttributes(attribute.String("chat.conversation_id", convID))
	log := s.logger.With("user_id", userID, "conversation_id", convID)

	turnCtx, cancel := context.WithTimeout(ctx, s.config.TurnTimeout)
	defer cancel()

	fail := func(chatErr *domain.ChatError) (*domain.ChatResponse, error) {
		span.RecordError(chatErr)
		span.SetStatus(codes.Error, string(chatErr.Kind))
		log.Warn("chat turn failed",
			"kind", chatErr.Kind,
			"user_message_recorded", chatErr.UserMessageRecorded,
			"error", chatErr.Err,
		)
		return nil, chatErr
	}

	// Grounding is mandatory: no index, no answer.
	if _, err := s.index.Warm(turnCtx, userID); err != nil {
		return fail(domain.NewRetrievalError(convID, false, err))
	}

	llm, err := s.services.RequireLLM()
	if err != nil {
		return fail(domain.NewGenerationError(convID, false, err))
	}

	var imageAnalysis string
	if req.HasImage() {
		imageAnalysis, err = llm.GenerateFromImage(turnCtx, ImageAnalysisInstruction, req.ImageBase64)
		if err != nil {
			return fail(domain.NewGenerationError(convID, false, fmt.Errorf("analyze image: %w", err)))
		}
		imageAnalysis = strings.TrimSpace(imageAnalysis)
	}

	userMsg := domain.Message{
		Role:          domain.MessageRoleUser,
		Content:       message,
		ImageAnalysis: imageAnalysis,
		CreatedAt:     s.now(),
	}
	if err := s.conversations.Append(ctx, convID, userID, userMsg); err != nil {
		return fail(domain.NewRetrievalError(convID, false, fmt.Errorf("record user message: %w", err)))
	}

	conv, err := s.conversations.Get(ctx, convID)
	if err != nil {
		return fail(domain.NewRetrievalError(convID, true, fmt.Errorf("load conversation: %w", err)))
	}
	history := conv.LastMessages(s.config.HistoryLimit)

	hits, err := s.index.Retrieve(turnCtx, userID, RetrievalQuery(message, imageAnalysis), s.config.TopK)
	if err != nil {
		return fail(domain.NewRetrievalError(convID, true, err))
	}

	prompt := BuildPrompt(PromptInput{
		Currency:      req.Currency,
		History:       history,
		Context:       hits,
		Message:       message,
		ImageAnalysis: imageAnalysis,
	})

	answer, err := llm.GenerateText(turnCtx, prompt)
	if err != nil {
		return fail(domain.NewGenerationError(convID, true, err))
	}

	assistantMsg := domain.Message{
		Role:      domain.MessageRoleAssistant,
		Content:   answer,
		CreatedAt: s.now(),
	}
	if err := s.conversations.Append(ctx, convID, userID, assistantMsg); err != nil {
		return fail(domain.NewGenerationError(convID, true, fmt.Errorf("record assistant message: %w", err)))
	}

	sources := []string{domain.SourceUserData}
	if req.HasImage() {
		sources = append(sources, domain.SourceImageAnalysis)
	}

	span.SetAttributes(attribute.Int("chat.context_documents", len(hits)))
	log.Info("chat turn completed", "context_documents", len(hits), "image", req.HasImage())

	return &domain.ChatResponse{
		Response:       answer,
		ConversationID: convID,
		Sources:        sources,
		Timestamp:      s.now().UTC(),
	}, nil
}

// isClientError reports errors caused by the request rather than a backend
func isClientError(err error) bool {
	return errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput)
}

// resolveConversation returns the supplied id if userID may use it, or a
// freshly created one when none was supplied.
func (s *chatService) resolveConversation(ctx context.Context, userID, conversationID string) (string, error) {
	if conversationID == "" {
		return s.conversations.Create(ctx, userID)
	}

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if !conv.OwnedBy(userID) {
		return "", domain.ErrForbidden
	}
	return conversationID, nil
}
