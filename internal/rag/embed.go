package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/libram-ai/libram/internal/log"
)

// Input types for providers that distinguish query from document embeddings.
// Providers that make no distinction ignore the hint; vectors stay compatible
// either way.
const (
	InputTypeQuery    = "query"
	InputTypeDocument = "document"
)

// Embedder produces embedding vectors for texts. Implementations wrap a
// remote provider; see internal/provider for the Genkit-backed one.
type Embedder interface {
	Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error)
}

// QueryEmbedder embeds user questions, consulting the cache first.
// Within the TTL window an identical question costs zero remote calls.
type QueryEmbedder struct {
	embedder Embedder
	cache    EmbeddingCache
	retry    *RetryPolicy
	timeout  time.Duration
	logger   log.Logger
}

// NewQueryEmbedder wires an embedder behind the cache and retry policy.
// timeout bounds each individual provider attempt; zero disables it.
func NewQueryEmbedder(embedder Embedder, cache EmbeddingCache, retry *RetryPolicy, timeout time.Duration, logger log.Logger) *QueryEmbedder {
	return &QueryEmbedder{
		embedder: embedder,
		cache:    cache,
		retry:    retry,
		timeout:  timeout,
		logger:   logger,
	}
}

// EmbedQuery returns the embedding vector for question.
// Cache hit: no remote call. Miss or expiry: one provider call through
// the retry policy, then the result is stored. Failures carry KindEmbedding.
func (q *QueryEmbedder) EmbedQuery(ctx context.Context, question string) ([]float32, error) {
	if vector, ok := q.cache.Get(question); ok {
		q.logger.Debug("embedding cache hit", "chars", len(question))
		return vector, nil
	}

	var vector []float32
	err := q.retry.Do(ctx, func(ctx context.Context) error {
		if q.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.timeout)
			defer cancel()
		}
		vectors, err := q.embedder.Embed(ctx, []string{question}, InputTypeQuery)
		if err != nil {
			return err
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return fmt.Errorf("provider returned no embedding")
		}
		vector = vectors[0]
		return nil
	})
	if err != nil {
		return nil, NewError(KindEmbedding, fmt.Errorf("embedding query: %w", err))
	}

	q.cache.Set(question, vector)
	q.logger.Debug("embedded query", "chars", len(question), "dimension", len(vector))
	return vector, nil
}
