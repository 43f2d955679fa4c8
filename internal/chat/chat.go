// Package chat answers user questions grounded in the vector index.
//
// Each answer is produced by searching the index with the latest user
// message, folding the best-matching chunks into the system prompt, and
// streaming a completion from the chat model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koopa0/chatbot-rag/internal/index"
	"github.com/koopa0/chatbot-rag/internal/log"
)

// systemPromptBase prefixes the retrieved context in the system prompt.
const systemPromptBase = "You are a helpful assistant, here is the context: "

// Roles in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNoUserMessage indicates the conversation has no user turn to answer.
	ErrNoUserMessage = errors.New("no user message in conversation")

	// ErrCompletion indicates the chat model failed to produce an answer.
	ErrCompletion = errors.New("completion failed")
)

// Part is one piece of a message. Only text parts are supported.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is a single conversation turn.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text joins the message's text parts with single spaces.
func (m Message) Text() string {
	parts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Searcher is the slice of the vector index the service needs.
type Searcher interface {
	Search(ctx context.Context, namespace, query string, topK int) ([]index.Hit, error)
}

// Completer streams a chat completion. onDelta is invoked for each chunk of
// generated text in order; a non-nil return aborts the stream. The full
// answer is returned once the stream completes.
type Completer interface {
	Complete(ctx context.Context, messages []Message, onDelta func(string) error) (string, error)
}

// Config carries the retrieval knobs.
type Config struct {
	Namespace string
	TopK      int
}

// Service produces retrieval-grounded answers.
type Service struct {
	searcher  Searcher
	completer Completer
	cfg       Config
	logger    log.Logger
}

// New creates a Service.
func New(searcher Searcher, completer Completer, cfg Config, logger log.Logger) *Service {
	return &Service{searcher: searcher, completer: completer, cfg: cfg, logger: logger}
}

// Answer retrieves context for the latest user message and streams the
// model's reply through onDelta, returning the complete answer text.
//
// A retrieval failure aborts the request; the model is never asked to answer
// without its context.
func (s *Service) Answer(ctx context.Context, messages []Message, onDelta func(string) error) (string, error) {
	query := latestUserText(messages)
	if query == "" {
		return "", ErrNoUserMessage
	}

	hits, err := s.searcher.Search(ctx, s.cfg.Namespace, query, s.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	s.logger.Debug("retrieved context", "hits", len(hits), "query_len", len(query))

	prompt := make([]Message, 0, len(messages)+1)
	prompt = append(prompt, Message{
		Role:  RoleSystem,
		Parts: []Part{{Type: "text", Text: systemPromptBase + joinContext(hits)}},
	})
	prompt = append(prompt, messages...)

	answer, err := s.completer.Complete(ctx, prompt, onDelta)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	return answer, nil
}

// latestUserText returns the text of the most recent user turn.
func latestUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}

// joinContext flattens hit texts into one space-separated context string.
func joinContext(hits []index.Hit) string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Text != "" {
			texts = append(texts, h.Text)
		}
	}
	return strings.Join(texts, " ")
}
