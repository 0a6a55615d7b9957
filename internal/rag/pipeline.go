package rag

import (
	"context"
	"fmt"

	"github.com/libram-ai/libram/internal/log"
)

// fallbackAnswerText is the terminal apology when the pipeline itself fails.
const fallbackAnswerText = "I ran into a problem while answering your question. " +
	"Please try again in a moment, or ask a different question."

// Pipeline orchestrates one question through embedding, retrieval,
// generation, and scoring.
//
// Answer never returns an internal failure: embedding, retrieval, and
// generation errors are logged with their stage kind and converted into
// a fallback Answer at this boundary. Only input validation is surfaced.
type Pipeline struct {
	embedder  *QueryEmbedder
	retriever *Retriever
	generator *AnswerGenerator
	logger    log.Logger
}

// NewPipeline assembles the pipeline from its three stages.
func NewPipeline(embedder *QueryEmbedder, retriever *Retriever, generator *AnswerGenerator, logger log.Logger) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}
}

// Answer answers question from the ingested book content, with optional
// prior conversation turns for follow-up context.
//
// The only possible error is a KindValidation rejection of the input
// itself. Every other failure produces a well-formed fallback Answer
// with empty sources and zero confidence.
func (p *Pipeline) Answer(ctx context.Context, question string, history []Turn) (answer Answer, err error) {
	if verr := ValidateQuery(question); verr != nil {
		return Answer{}, verr
	}

	// Last line of the never-fails contract: a panic anywhere below
	// still yields a fallback Answer.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic recovered", "panic", r)
			answer = p.fallbackAnswer()
			err = nil
		}
	}()

	p.logger.Info("processing question", "chars", len(question), "history_turns", len(history))

	vector, eerr := p.embedder.EmbedQuery(ctx, question)
	if eerr != nil {
		return p.containedFailure(eerr), nil
	}

	passages, rerr := p.retriever.Retrieve(ctx, vector)
	if rerr != nil {
		return p.containedFailure(rerr), nil
	}

	text, sources := p.generator.Generate(ctx, question, passages, history)
	confidence := ConfidenceScore(passages)

	p.logger.Info("answered question",
		"sources", len(sources),
		"confidence", fmt.Sprintf("%.2f", confidence))

	return Answer{Text: text, Sources: sources, Confidence: confidence}, nil
}

// containedFailure logs an internal stage error and returns the fallback.
func (p *Pipeline) containedFailure(err error) Answer {
	p.logger.Error("pipeline stage failed",
		"kind", KindOf(err).String(),
		"error", err)
	return p.fallbackAnswer()
}

func (p *Pipeline) fallbackAnswer() Answer {
	return Answer{
		Text:       fallbackAnswerText,
		Sources:    []Source{},
		Confidence: 0.0,
	}
}
