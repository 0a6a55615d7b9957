// Package provider initializes Genkit with the configured AI backend and
// implements the narrow embedding and chat interfaces the pipeline consumes.
// Supports gemini (default), ollama, and openai.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/libram-ai/libram/internal/config"
	"github.com/libram-ai/libram/internal/log"
)

// Provider owns the Genkit instance and the registered embedder.
type Provider struct {
	g        *genkit.Genkit
	cfg      *config.Config
	embedder ai.Embedder
	logger   log.Logger
}

// New initializes Genkit for cfg.Provider and resolves the embedder.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: explicit DefineModel/DefineEmbedder registration (no auto-discovery)
//   - openai: auto-registered in Init(), looked up by model name
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Provider, error) {
	var (
		g        *genkit.Genkit
		embedder ai.Embedder
	)

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder = ollama.Embedder(g, cfg.OllamaHost)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		embedder = genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	return &Provider{g: g, cfg: cfg, embedder: embedder, logger: logger}, nil
}

// Genkit exposes the underlying instance for observability wiring.
func (p *Provider) Genkit() *genkit.Genkit {
	return p.g
}

// Embedder returns the embedding client for this provider.
func (p *Provider) Embedder() *Embedder {
	return &Embedder{
		embedder:  p.embedder,
		provider:  p.cfg.Provider,
		dimension: p.cfg.EmbedderDimension,
	}
}

// ChatModel returns the completion client for this provider.
func (p *Provider) ChatModel() *Chat {
	return &Chat{
		g:           p.g,
		modelName:   p.cfg.FullModelName(),
		temperature: p.cfg.Temperature,
		maxTokens:   p.cfg.MaxTokens,
	}
}
