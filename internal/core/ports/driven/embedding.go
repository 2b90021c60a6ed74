package driven

import (
	"context"
)

// EmbeddingService turns record documents and user questions into vectors.
// Document and query vectors share one space and are compared by cosine
// similarity inside the per-user index.
type EmbeddingService interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a chat question
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions is zero until the first successful call when the
	// model is not known ahead of time
	Dimensions() int
	Model() string

	HealthCheck(ctx context.Context) error
	Close() error
}
