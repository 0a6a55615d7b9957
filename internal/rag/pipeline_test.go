package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/libram-ai/libram/internal/log"
)

func newTestPipeline(embedder Embedder, searcher Searcher, model ChatModel) *Pipeline {
	policy, _ := testPolicy(1)
	logger := log.NewNop()
	return NewPipeline(
		NewQueryEmbedder(embedder, NewTTLCache(time.Hour), policy, 0, logger),
		NewRetriever(searcher, 5, 0.3, 0, logger),
		NewAnswerGenerator(model, policy, 0, logger),
		logger,
	)
}

func TestAnswerHappyPath(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{passages: passagesWithScores(0.9, 0.6, 0.2)}
	model := &fakeChatModel{reply: "X is explained in chapter one."}
	p := newTestPipeline(&fakeEmbedder{vector: []float32{1}}, searcher, model)

	answer, err := p.Answer(context.Background(), "What is X?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if answer.Text != "X is explained in chapter one." {
		t.Errorf("text = %q", answer.Text)
	}
	// 0.2 falls below the 0.3 threshold; confidence = mean(0.9, 0.6).
	if len(answer.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(answer.Sources))
	}
	if math.Abs(answer.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", answer.Confidence)
	}
}

func TestAnswerEmptyStore(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{reply: "unused"}
	p := newTestPipeline(&fakeEmbedder{vector: []float32{1}}, &fakeSearcher{}, model)

	answer, err := p.Answer(context.Background(), "What is X?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if model.calls != 0 {
		t.Errorf("model calls = %d, want 0", model.calls)
	}
	if answer.Text != noInfoAnswer {
		t.Errorf("text = %q, want canonical no-information message", answer.Text)
	}
	if len(answer.Sources) != 0 || answer.Confidence != 0.0 {
		t.Errorf("sources = %v, confidence = %v; want empty and 0.0", answer.Sources, answer.Confidence)
	}
}

func TestAnswerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{name: "empty", query: "", want: ErrEmptyQuery},
		{name: "whitespace only", query: "   \n\t", want: ErrEmptyQuery},
		{name: "too long", query: strings.Repeat("x", MaxQueryLength+1), want: ErrQueryTooLong},
	}

	p := newTestPipeline(&fakeEmbedder{vector: []float32{1}}, &fakeSearcher{}, &fakeChatModel{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.Answer(context.Background(), tt.query, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if KindOf(err) != KindValidation {
				t.Errorf("kind = %v, want validation", KindOf(err))
			}
		})
	}
}

func TestAnswerNeverFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		embedder Embedder
		searcher Searcher
	}{
		{
			name:     "embedding provider down",
			embedder: &fakeEmbedder{err: errors.New("invalid api key")},
			searcher: &fakeSearcher{},
		},
		{
			name:     "vector store down",
			embedder: &fakeEmbedder{vector: []float32{1}},
			searcher: &fakeSearcher{err: errors.New("connection refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPipeline(tt.embedder, tt.searcher, &fakeChatModel{reply: "unused"})

			answer, err := p.Answer(context.Background(), "What is X?", nil)
			if err != nil {
				t.Fatalf("internal failures must not surface, got: %v", err)
			}
			if answer.Text == "" {
				t.Error("fallback answer has empty text")
			}
			if len(answer.Sources) != 0 {
				t.Errorf("fallback sources = %v, want empty", answer.Sources)
			}
			if answer.Confidence != 0.0 {
				t.Errorf("fallback confidence = %v, want 0.0", answer.Confidence)
			}
		})
	}
}

// panicSearcher exercises the panic containment boundary.
type panicSearcher struct{}

func (panicSearcher) Search(context.Context, []float32, int) ([]Passage, error) {
	panic("corrupted index")
}

func TestAnswerRecoversPanic(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeEmbedder{vector: []float32{1}}, panicSearcher{}, &fakeChatModel{})

	answer, err := p.Answer(context.Background(), "What is X?", nil)
	if err != nil {
		t.Fatalf("panic must not surface as error: %v", err)
	}
	if answer.Text != fallbackAnswerText {
		t.Errorf("text = %q, want fallback", answer.Text)
	}
	if answer.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", answer.Confidence)
	}
}

func TestAnswerGenerationFailureStillGrounded(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{passages: passagesWithScores(0.9, 0.6)}
	model := &fakeChatModel{err: errors.New("backend returned 503")}
	p := newTestPipeline(&fakeEmbedder{vector: []float32{1}}, searcher, model)

	answer, err := p.Answer(context.Background(), "What is X?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Generation degraded to extractive text, but retrieval succeeded,
	// so sources and confidence stay grounded.
	if !strings.Contains(answer.Text, "most relevant sections") {
		t.Errorf("expected extractive answer, got: %q", answer.Text)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(answer.Sources))
	}
	if math.Abs(answer.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", answer.Confidence)
	}
}
