package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/libram-ai/libram/internal/log"
)

// fakeChatModel returns a canned completion or error and records inputs.
type fakeChatModel struct {
	reply    string
	err      error
	calls    int
	system   string
	messages []Turn
}

func (f *fakeChatModel) Complete(_ context.Context, system string, messages []Turn) (string, error) {
	f.calls++
	f.system = system
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestGenerator(model ChatModel) *AnswerGenerator {
	policy, _ := testPolicy(2)
	return NewAnswerGenerator(model, policy, 0, log.NewNop())
}

func TestGenerateSkipsModelWithoutPassages(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{reply: "should not be used"}
	gen := newTestGenerator(model)

	text, sources := gen.Generate(context.Background(), "what is ros 2", nil, nil)

	if model.calls != 0 {
		t.Errorf("model calls = %d, want 0 when nothing was retrieved", model.calls)
	}
	if text != noInfoAnswer {
		t.Errorf("text = %q, want canonical no-information message", text)
	}
	if len(sources) != 0 {
		t.Errorf("sources = %v, want empty", sources)
	}
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{reply: "ROS 2 is a robotics middleware."}
	gen := newTestGenerator(model)

	passages := []Passage{
		{URL: "https://book.example/ch1", Title: "Chapter 1", Content: "ROS 2 overview.", Score: 0.9},
		{URL: "https://book.example/ch2", Title: "Chapter 2", Content: "Nodes and topics.", Score: 0.6},
	}

	text, sources := gen.Generate(context.Background(), "what is ros 2", passages, nil)

	if text != "ROS 2 is a robotics middleware." {
		t.Errorf("text = %q", text)
	}
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
	if sources[0].URL != "https://book.example/ch1" || sources[0].Score != 0.9 {
		t.Errorf("sources[0] = %+v, retrieval order and fields must be preserved", sources[0])
	}

	if model.system != systemInstruction {
		t.Errorf("system instruction not passed to model")
	}
	prompt := model.messages[len(model.messages)-1].Content
	if !strings.Contains(prompt, "Book Content:") || !strings.Contains(prompt, "what is ros 2") {
		t.Errorf("prompt missing context or question:\n%s", prompt)
	}
	if !strings.Contains(prompt, "ROS 2 overview.") {
		t.Errorf("prompt missing retrieved content:\n%s", prompt)
	}
}

func TestGenerateAppendsHistoryBeforePrompt(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{reply: "answer"}
	gen := newTestGenerator(model)

	history := []Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	passages := passagesWithScores(0.9)

	gen.Generate(context.Background(), "follow-up", passages, history)

	if len(model.messages) != 3 {
		t.Fatalf("messages = %d, want history + prompt", len(model.messages))
	}
	if model.messages[0].Content != "earlier question" {
		t.Errorf("history not first: %+v", model.messages[0])
	}
	if model.messages[2].Role != "user" {
		t.Errorf("final message role = %q, want user", model.messages[2].Role)
	}
}

func TestGenerateExtractiveFallback(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{err: errors.New("backend returned 503")}
	gen := newTestGenerator(model)

	passages := []Passage{
		{URL: "https://book.example/a", Title: "Alpha", Score: 0.9},
		{URL: "https://book.example/b", Title: "", Score: 0.8},
		{URL: "https://book.example/c", Title: "Gamma", Score: 0.7},
		{URL: "https://book.example/d", Title: "Delta", Score: 0.6},
	}

	text, sources := gen.Generate(context.Background(), "question", passages, nil)

	// Retries exhausted: 1 initial + 2 retries.
	if model.calls != 3 {
		t.Errorf("model calls = %d, want 3", model.calls)
	}

	if !strings.Contains(text, "most relevant sections") {
		t.Errorf("not an extractive answer: %q", text)
	}
	if !strings.Contains(text, "1. Alpha") {
		t.Errorf("missing first section title:\n%s", text)
	}
	if !strings.Contains(text, "2. "+untitledSection) {
		t.Errorf("untitled passage should use the placeholder title:\n%s", text)
	}
	if strings.Contains(text, "Delta") {
		t.Errorf("fallback should cover only the top 3 passages:\n%s", text)
	}

	if len(sources) != 3 {
		t.Fatalf("sources = %d, want top 3", len(sources))
	}
	if sources[0].URL != "https://book.example/a" {
		t.Errorf("sources[0] = %+v", sources[0])
	}
}

func TestGenerateFatalModelErrorStillDegrades(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{err: errors.New("invalid api key")}
	gen := newTestGenerator(model)

	text, sources := gen.Generate(context.Background(), "question", passagesWithScores(0.9), nil)

	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1 (fatal errors skip retries)", model.calls)
	}
	if !strings.Contains(text, "most relevant sections") {
		t.Errorf("expected extractive fallback, got: %q", text)
	}
	if len(sources) != 1 {
		t.Errorf("sources = %d, want 1", len(sources))
	}
}
