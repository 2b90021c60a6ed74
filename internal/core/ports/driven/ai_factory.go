package driven

import (
	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// AIServiceFactory turns gateway settings into clients. A nil service with
// a nil error means the capability was left unconfigured, and callers treat
// retrieval or generation as unavailable.
type AIServiceFactory interface {
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}
