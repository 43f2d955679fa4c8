package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/koopa0/chatbot-rag/internal/chat"
	"github.com/koopa0/chatbot-rag/internal/log"
)

// ChatService produces a streamed, retrieval-grounded answer.
type ChatService interface {
	Answer(ctx context.Context, messages []chat.Message, onDelta func(string) error) (string, error)
}

// ChatHandler handles the chat endpoint.
//
// POST /api/chat accepts the conversation so far and streams the answer as
// Server-Sent Events.
type ChatHandler struct {
	service ChatService
	logger  log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service ChatService, logger log.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// SSEChunkData is the data for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the data for "done" events.
type SSEDoneData struct {
	Response string `json:"response"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleChat streams the answer over SSE.
//
// Event types:
//   - chunk: partial text {"text": "..."}
//   - done:  full answer {"response": "..."}
//   - error: failure {"code": "...", "message": "..."}
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_MESSAGES", "messages is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	ctx := r.Context()
	requestID := RequestID(ctx)
	h.logger.Info("chat stream started", "request_id", requestID, "messages", len(req.Messages))

	answer, err := h.service.Answer(ctx, req.Messages, func(delta string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.writeSSEChunk(w, flusher, delta)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "request_id", requestID)
			return
		}
		h.logger.Error("chat stream failed", "request_id", requestID, "error", err)
		h.writeSSEError(w, flusher, "STREAM_ERROR", err.Error())
		return
	}

	h.writeSSEDone(w, flusher, answer)
	h.logger.Info("chat stream completed", "request_id", requestID, "response_len", len(answer))
}

// writeSSEChunk writes a chunk event to the SSE stream.
func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEDone writes a done event to the SSE stream.
func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, response string) {
	data, _ := json.Marshal(SSEDoneData{Response: response})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEError writes an error event to the SSE stream.
func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
