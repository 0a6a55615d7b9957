package provider

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"

	"github.com/libram-ai/libram/internal/config"
	"github.com/libram-ai/libram/internal/rag"
)

// Embedder adapts a Genkit ai.Embedder to the pipeline's contract.
type Embedder struct {
	embedder  ai.Embedder
	provider  string
	dimension int
}

// Embed returns one vector per input text, batched in a single request.
//
// For gemini the input-type hint maps to the task type and the output is
// truncated to the configured dimension (gemini-embedding-001 emits 3072
// dimensions by default; the passages table stores the truncated width).
// Ollama and OpenAI embedders ignore the hint; their vectors are sized by
// the model itself.
func (e *Embedder) Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	req := &ai.EmbedRequest{Input: docs}
	if e.provider == "" || e.provider == config.ProviderGemini || e.provider == config.ProviderGoogleAI {
		dim := int32(e.dimension)
		req.Options = &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
			TaskType:             taskTypeFor(inputType),
		}
	}

	resp, err := e.embedder.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = emb.Embedding
	}
	return out, nil
}

func taskTypeFor(inputType string) string {
	if inputType == rag.InputTypeDocument {
		return "RETRIEVAL_DOCUMENT"
	}
	return "RETRIEVAL_QUERY"
}
