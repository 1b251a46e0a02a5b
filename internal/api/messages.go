package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wellora/coach/internal/chat"
	"github.com/wellora/coach/internal/history"
)

// maxRequestBody bounds inbound JSON bodies. Message content is capped far
// below this; the slack covers envelope and encoding overhead.
const maxRequestBody = 64 * 1024

// defaultPageSize is the message page size when the caller does not ask for
// one.
const defaultPageSize = 50

// messageHandler serves the message endpoints.
type messageHandler struct {
	service *chat.Service
	history chat.HistoryStore
	logger  *slog.Logger
}

// sendRequest is the POST /api/v1/messages body.
type sendRequest struct {
	Content string `json:"content"`
}

// messagePayload is the wire shape of a persisted message.
type messagePayload struct {
	MessageID string            `json:"message_id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	CreatedAt string            `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// sendResponse is the completed-turn envelope.
type sendResponse struct {
	UserMessage      messagePayload `json:"user_message"`
	AssistantMessage messagePayload `json:"assistant_message"`
}

func toPayload(m *history.Message) messagePayload {
	return messagePayload{
		MessageID: m.ID.String(),
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		Metadata:  m.Metadata,
	}
}

// send handles POST /api/v1/messages.
func (h *messageHandler) send(w http.ResponseWriter, r *http.Request) {
	convID := conversationID(r)
	if convID == "" {
		writeError(w, http.StatusBadRequest, "missing_conversation", conversationHeader+" header is required")
		return
	}

	var req sendRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	res, err := h.service.SendMessage(r.Context(), convID, req.Content)
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		UserMessage:      toPayload(res.UserMessage),
		AssistantMessage: toPayload(res.AssistantMessage),
	})
}

func (h *messageHandler) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, chat.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "message_too_long", err.Error())
	default:
		h.logger.Error("message processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
	}
}

// list handles GET /api/v1/messages with limit/before_id pagination.
// Messages are returned in chronological order.
func (h *messageHandler) list(w http.ResponseWriter, r *http.Request) {
	convID := conversationID(r)
	if convID == "" {
		writeError(w, http.StatusBadRequest, "missing_conversation", conversationHeader+" header is required")
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	var beforeID *uuid.UUID
	if raw := r.URL.Query().Get("before_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_before_id", "before_id must be a UUID")
			return
		}
		beforeID = &id
	}

	messages, err := h.history.List(r.Context(), convID, limit, beforeID)
	if err != nil {
		h.logger.Error("listing messages failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list messages")
		return
	}

	// Store order is newest-first; callers read chronologically.
	payloads := make([]messagePayload, len(messages))
	for i, m := range messages {
		payloads[len(messages)-1-i] = toPayload(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": payloads})
}

// SSE event types for streaming turns.
const (
	eventChunk = "chunk" // partial response text
	eventDone  = "done"  // stream completed, carries the persisted message
	eventError = "error" // stream failed
)

// chunkPayload is the SSE data payload for streaming text fragments.
type chunkPayload struct {
	Text string `json:"text"`
}

// donePayload closes a successful stream with the persisted assistant
// message identity.
type donePayload struct {
	MessageID string `json:"message_id"`
	CreatedAt string `json:"created_at"`
}

// errorPayload closes a failed stream.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// stream handles POST /api/v1/messages/stream as Server-Sent Events.
func (h *messageHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	convID := conversationID(r)
	if convID == "" {
		_ = writeEvent(w, flusher, eventError, errorPayload{
			Code: "missing_conversation", Message: conversationHeader + " header is required",
		})
		return
	}

	var req sendRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{
			Code: "invalid_request", Message: "invalid request body",
		})
		return
	}

	ctx := r.Context()
	res, err := h.service.StreamMessage(ctx, convID, req.Content, func(fragment string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeEvent(w, flusher, eventChunk, chunkPayload{Text: fragment})
	})
	if err != nil {
		code := "stream_error"
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			code = "empty_message"
		case errors.Is(err, chat.ErrMessageTooLong):
			code = "message_too_long"
		}
		h.logger.Warn("stream ended with error", "conversation_id", convID, "error", err)
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: code, Message: err.Error()})
		return
	}

	_ = writeEvent(w, flusher, eventDone, donePayload{
		MessageID: res.AssistantMessage.ID.String(),
		CreatedAt: res.AssistantMessage.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
