package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/libram-ai/libram/internal/log"
	"github.com/libram-ai/libram/internal/rag"
)

// fakePipeline records calls and returns a canned answer or error.
type fakePipeline struct {
	answer      rag.Answer
	err         error
	calls       int
	lastQuery   string
	lastHistory []rag.Turn
}

func (f *fakePipeline) Answer(_ context.Context, question string, history []rag.Turn) (rag.Answer, error) {
	f.calls++
	f.lastQuery = question
	f.lastHistory = history
	if f.err != nil {
		return rag.Answer{}, f.err
	}
	return f.answer, nil
}

func newTestHandler(pipeline Answerer) *chatHandler {
	return &chatHandler{
		pipeline:      pipeline,
		conversations: newConversations(20, time.Hour),
		logger:        log.NewNop(),
	}
}

func postChat(t *testing.T, h *chatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.send(rec, req)
	return rec
}

func decodeChat(t *testing.T, rec *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestChatReturnsAnswer(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{answer: rag.Answer{
		Text:       "The index is built in a single pass.",
		Sources:    []rag.Source{{URL: "https://book.example.com/ch3", Title: "Indexing", Score: 0.9}},
		Confidence: 0.9,
	}}
	h := newTestHandler(pipeline)

	rec := postChat(t, h, `{"query": "How is the index built?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	resp := decodeChat(t, rec)
	if resp.Answer != pipeline.answer.Text {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].URL != "https://book.example.com/ch3" {
		t.Errorf("unexpected sources %+v", resp.Sources)
	}
	if resp.ConversationID == "" {
		t.Error("expected a minted conversation id")
	}
	if pipeline.lastQuery != "How is the index built?" {
		t.Errorf("unexpected query %q", pipeline.lastQuery)
	}
}

func TestChatContinuesConversation(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{answer: rag.Answer{Text: "Chapter one covers tokenization."}}
	h := newTestHandler(pipeline)

	first := decodeChat(t, postChat(t, h, `{"query": "What does chapter one cover?"}`))
	if len(pipeline.lastHistory) != 0 {
		t.Fatalf("expected empty history on first turn, got %d", len(pipeline.lastHistory))
	}

	rec := postChat(t, h, `{"query": "And chapter two?", "conversation_id": "`+first.ConversationID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	second := decodeChat(t, rec)
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation id changed: %q vs %q", second.ConversationID, first.ConversationID)
	}
	if len(pipeline.lastHistory) != 2 {
		t.Fatalf("expected 2 prior turns, got %d", len(pipeline.lastHistory))
	}
	if pipeline.lastHistory[0].Role != roleUser || pipeline.lastHistory[1].Role != roleAssistant {
		t.Errorf("unexpected history roles %+v", pipeline.lastHistory)
	}
}

func TestChatPrependsSelectedText(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{answer: rag.Answer{Text: "It refers to the node graph."}}
	h := newTestHandler(pipeline)

	rec := postChat(t, h, `{"query": "What does this mean?", "selected_text": "nodes exchange messages over topics"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	want := "Based on this text: 'nodes exchange messages over topics'\n\nWhat does this mean?"
	if pipeline.lastQuery != want {
		t.Errorf("question = %q, want %q", pipeline.lastQuery, want)
	}

	// The stored user turn carries the highlighted text too, so later
	// turns keep the grounding in history.
	first := decodeChat(t, rec)
	postChat(t, h, `{"query": "Go on.", "conversation_id": "`+first.ConversationID+`"}`)
	if len(pipeline.lastHistory) != 2 || pipeline.lastHistory[0].Content != want {
		t.Errorf("unexpected history %+v", pipeline.lastHistory)
	}
}

func TestChatRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "malformed json",
			body:     `{"query": `,
			wantCode: "invalid_body",
		},
		{
			name:     "bad conversation id",
			body:     `{"query": "q", "conversation_id": "not-a-uuid"}`,
			wantCode: "invalid_conversation_id",
		},
		{
			name:     "oversized selected text",
			body:     `{"query": "q", "selected_text": "` + strings.Repeat("a", 2001) + `"}`,
			wantCode: "invalid_selected_text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHandler(&fakePipeline{})
			rec := postChat(t, h, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestChatMapsValidationErrorTo400(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{err: rag.ValidateQuery("")}
	h := newTestHandler(pipeline)

	rec := postChat(t, h, `{"query": "   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error.Code != "invalid_query" {
		t.Errorf("expected invalid_query, got %q", resp.Error.Code)
	}
}

func TestGetConversation(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{answer: rag.Answer{Text: "An answer."}}
	h := newTestHandler(pipeline)

	first := decodeChat(t, postChat(t, h, `{"query": "A question?"}`))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversations/{id}", h.getConversation)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+first.ConversationID, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp conversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(resp.Turns))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/00000000-0000-0000-0000-000000000000", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown conversation, got %d", rec.Code)
	}
}
