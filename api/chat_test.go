package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/chatbot-rag/internal/chat"
	"github.com/koopa0/chatbot-rag/internal/log"
)

type fakeChatService struct {
	chunks   []string
	err      error
	received []chat.Message
}

func (f *fakeChatService) Answer(_ context.Context, messages []chat.Message, onDelta func(string) error) (string, error) {
	f.received = messages
	if f.err != nil {
		return "", f.err
	}
	var full strings.Builder
	for _, c := range f.chunks {
		full.WriteString(c)
		if onDelta != nil {
			if err := onDelta(c); err != nil {
				return "", err
			}
		}
	}
	return full.String(), nil
}

func newChatMux(service ChatService) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(service, log.NewNop()).RegisterRoutes(mux)
	return mux
}

// parseSSE splits an SSE body into (event, data) pairs.
func parseSSE(t *testing.T, body string) [][2]string {
	t.Helper()
	var events [][2]string
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		lines := strings.SplitN(block, "\n", 2)
		require.Len(t, lines, 2, "malformed SSE block: %q", block)
		events = append(events, [2]string{
			strings.TrimPrefix(lines[0], "event: "),
			strings.TrimPrefix(lines[1], "data: "),
		})
	}
	return events
}

func TestChatHandler_StreamsChunksAndDone(t *testing.T) {
	service := &fakeChatService{chunks: []string{"Hello", " there"}}
	mux := newChatMux(service)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "chunk", events[0][0])
	assert.JSONEq(t, `{"text":"Hello"}`, events[0][1])
	assert.Equal(t, "chunk", events[1][0])
	assert.JSONEq(t, `{"text":" there"}`, events[1][1])
	assert.Equal(t, "done", events[2][0])
	assert.JSONEq(t, `{"response":"Hello there"}`, events[2][1])

	require.Len(t, service.received, 1)
	assert.Equal(t, "user", service.received[0].Role)
}

func TestChatHandler_InvalidBody(t *testing.T) {
	mux := newChatMux(&fakeChatService{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestChatHandler_MissingMessages(t *testing.T) {
	mux := newChatMux(&fakeChatService{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_ServiceErrorBecomesSSEError(t *testing.T) {
	service := &fakeChatService{err: errors.New("retrieval unavailable")}
	mux := newChatMux(service)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0][0])
	assert.Contains(t, events[0][1], "retrieval unavailable")
}

func TestChatHandler_MethodNotAllowed(t *testing.T) {
	mux := newChatMux(&fakeChatService{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
