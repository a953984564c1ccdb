package schema

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// CompletionCallbacks are optional hooks around completion calls.
type CompletionCallbacks struct {
	// OnComplete fires after a completion returned.
	OnComplete func(ctx context.Context, args *core.CompletionArgs, msg core.Message)
}

// Completion binds a name to an LLM completion back-end.
type Completion struct {
	// CompletionName is the unique registry key.
	CompletionName string
	// GetCompletion produces the next assistant message for the given
	// filtered history and tool declarations.
	GetCompletion func(ctx context.Context, args *core.CompletionArgs) (core.Message, error)

	Callbacks CompletionCallbacks
}

// Embedding binds a name to an embedding back-end used by storage search.
type Embedding struct {
	// EmbeddingName is the unique registry key.
	EmbeddingName string
	// CreateEmbedding embeds a text into a vector.
	CreateEmbedding func(ctx context.Context, text string) ([]float64, error)
	// CalculateSimilarity scores two vectors (higher is closer).
	CalculateSimilarity func(a, b []float64) (float64, error)
}
