package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/libram-ai/libram/internal/rag"
)

const (
	// maxChatBodyBytes bounds the request body size.
	maxChatBodyBytes = 64 << 10

	// maxSelectedTextLen bounds the optional highlighted passage a reader
	// attaches to ground a question.
	maxSelectedTextLen = 2000
)

// Answerer answers a question given prior conversation turns.
// *rag.Pipeline implements it.
type Answerer interface {
	Answer(ctx context.Context, question string, history []rag.Turn) (rag.Answer, error)
}

type chatRequest struct {
	Query          string `json:"query"`
	SelectedText   string `json:"selected_text,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// question merges the highlighted text, when present, into the query so
// retrieval and generation both see it.
func (req chatRequest) question() string {
	if req.SelectedText == "" {
		return req.Query
	}
	return fmt.Sprintf("Based on this text: '%s'\n\n%s", req.SelectedText, req.Query)
}

type chatResponse struct {
	Answer         string       `json:"answer"`
	Sources        []rag.Source `json:"sources"`
	Confidence     float64      `json:"confidence"`
	ConversationID string       `json:"conversation_id"`
}

type conversationResponse struct {
	ConversationID string     `json:"conversation_id"`
	Turns          []rag.Turn `json:"turns"`
}

type chatHandler struct {
	pipeline      Answerer
	conversations *conversations
	logger        *slog.Logger
}

// send handles POST /api/v1/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	if utf8.RuneCountInString(req.SelectedText) > maxSelectedTextLen {
		writeError(w, http.StatusBadRequest, "invalid_selected_text",
			fmt.Sprintf("selected_text must be at most %d characters", maxSelectedTextLen))
		return
	}

	conversationID, err := h.resolveConversationID(req.ConversationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_conversation_id", "conversation_id must be a UUID")
		return
	}

	history := h.conversations.history(conversationID)
	question := req.question()

	answer, err := h.pipeline.Answer(r.Context(), question, history)
	if err != nil {
		// The pipeline surfaces only input validation; everything else is
		// contained and already converted into a fallback answer.
		var ragErr *rag.Error
		if errors.As(err, &ragErr) && ragErr.Kind == rag.KindValidation {
			writeError(w, http.StatusBadRequest, "invalid_query", ragErr.Err.Error())
			return
		}
		h.logger.Error("unexpected pipeline error", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	h.conversations.append(conversationID, question, answer.Text)

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:         answer.Text,
		Sources:        answer.Sources,
		Confidence:     answer.Confidence,
		ConversationID: conversationID.String(),
	})
}

// getConversation handles GET /api/v1/conversations/{id}.
func (h *chatHandler) getConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_conversation_id", "conversation id must be a UUID")
		return
	}

	turns := h.conversations.history(id)
	if turns == nil {
		writeError(w, http.StatusNotFound, "conversation_not_found", "no such conversation")
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		ConversationID: id.String(),
		Turns:          turns,
	})
}

// resolveConversationID parses the caller-provided conversation ID, or
// mints a fresh one when the request starts a new conversation.
func (h *chatHandler) resolveConversationID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(raw)
}
