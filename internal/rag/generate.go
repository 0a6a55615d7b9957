package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/libram-ai/libram/internal/log"
)

// ChatModel produces a completion for a system instruction and message
// sequence. The last message is the current user prompt; anything before
// it is prior conversation. See internal/provider for the Genkit-backed
// implementation, which owns model name, temperature, and token limits.
type ChatModel interface {
	Complete(ctx context.Context, system string, messages []Turn) (string, error)
}

// systemInstruction constrains the model to the supplied book content.
const systemInstruction = "You are a helpful assistant that answers questions based ONLY on the " +
	"provided book content. If the information is not in the provided " +
	"content, clearly state that you don't have enough information from the book. " +
	"Do not use outside knowledge or make assumptions beyond what's given."

// noInfoAnswer is returned without any model call when retrieval found nothing.
const noInfoAnswer = "I don't have enough information from the book to confidently answer " +
	"this question. Could you try rephrasing it, or ask about a topic the book covers directly?"

// untitledSection labels passages that carry no title in the extractive fallback.
const untitledSection = "Section from the book"

// AnswerGenerator produces grounded answers from retrieved passages.
//
// The model is invoked through the retry policy; when it still fails, the
// generator degrades to an extractive summary of the top passages instead
// of propagating the error. Callers always receive usable text.
type AnswerGenerator struct {
	model   ChatModel
	retry   *RetryPolicy
	timeout time.Duration
	logger  log.Logger
}

// NewAnswerGenerator wires a chat model behind the retry policy.
// timeout bounds each individual model attempt; zero disables it.
func NewAnswerGenerator(model ChatModel, retry *RetryPolicy, timeout time.Duration, logger log.Logger) *AnswerGenerator {
	return &AnswerGenerator{
		model:   model,
		retry:   retry,
		timeout: timeout,
		logger:  logger,
	}
}

// Generate answers question from passages, with optional prior conversation.
// Empty passages short-circuit to the canonical no-information message with
// no model call. Sources mirror the passages in retrieval order.
func (g *AnswerGenerator) Generate(ctx context.Context, question string, passages []Passage, history []Turn) (string, []Source) {
	if len(passages) == 0 {
		g.logger.Warn("no passages retrieved, skipping generation", "question_chars", len(question))
		return noInfoAnswer, []Source{}
	}

	prompt := fmt.Sprintf("Based on the following book content, answer the user's question.\n\n"+
		"Book Content:\n%s\n\nQuestion: %s", FormatContext(passages), question)

	messages := make([]Turn, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Turn{Role: "user", Content: prompt})

	var text string
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		out, err := g.model.Complete(ctx, systemInstruction, messages)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		g.logger.Error("generation failed, degrading to extractive answer",
			"error", err,
			"passages", len(passages))
		return g.extractiveAnswer(passages)
	}

	g.logger.Info("generated answer", "chars", len(text), "sources", len(passages))
	return text, sourcesFor(passages)
}

// extractiveAnswer enumerates the top retrieved sections directly,
// used when the model is unavailable.
func (g *AnswerGenerator) extractiveAnswer(passages []Passage) (string, []Source) {
	top := passages
	if len(top) > 3 {
		top = top[:3]
	}

	var b strings.Builder
	b.WriteString("Based on the book content I found, here are the most relevant sections:\n\n")
	for i, p := range top {
		title := p.Title
		if title == "" {
			title = untitledSection
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	b.WriteString("\nI suggest checking these sections for detailed information.")

	return b.String(), sourcesFor(top)
}
