// Package openai provides an embedding adapter over the OpenAI Embeddings
// API. It exposes a ready-to-register embedding schema whose similarity
// function is cosine similarity.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/embedding"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI embedding adapter.
type Options struct {
	Model openai.EmbeddingModel
}

// Embedder wraps the OpenAI Embeddings API.
type Embedder struct {
	client *openai.Client
	opts   Options
}

// NewEmbedder creates a new embedder using the default client (API key from
// the environment).
func NewEmbedder(optFns ...func(o *Options)) *Embedder {
	client := openai.NewClient()
	return NewEmbedderFromClient(&client, optFns...)
}

// NewEmbedderFromClient creates a new embedder from an existing client.
func NewEmbedderFromClient(client *openai.Client, optFns ...func(o *Options)) *Embedder {
	opts := Options{Model: openai.EmbeddingModelTextEmbedding3Small}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{client: client, opts: opts}
}

// CreateEmbedding embeds a single text.
func (e *Embedder) CreateEmbedding(ctx context.Context, text string) ([]float64, error) {
	res, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.opts.Model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return res.Data[0].Embedding, nil
}

// Schema exposes the embedder as a registrable embedding schema.
func (e *Embedder) Schema(name string) schema.Embedding {
	return schema.Embedding{
		EmbeddingName:       name,
		CreateEmbedding:     e.CreateEmbedding,
		CalculateSimilarity: embedding.CosineSimilarity,
	}
}
