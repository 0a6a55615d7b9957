package provider

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/libram-ai/libram/internal/rag"
)

// Chat adapts genkit.Generate to the pipeline's completion contract.
// Model name, temperature, and token limit are fixed at construction.
type Chat struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int
}

// Complete generates a response for the system instruction and messages.
func (c *Chat) Complete(ctx context.Context, system string, messages []rag.Turn) (string, error) {
	msgs := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
			continue
		}
		msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
	}

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithMessages(msgs...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(c.temperature),
			MaxOutputTokens: c.maxTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion with %s: %w", c.modelName, err)
	}
	return resp.Text(), nil
}
