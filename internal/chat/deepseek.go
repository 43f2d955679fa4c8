package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DeepSeekConfig configures the DeepSeek chat client. The API is
// OpenAI-compatible, so BaseURL may point at any compatible endpoint.
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DeepSeek streams completions from the DeepSeek chat API.
type DeepSeek struct {
	client *openai.Client
	model  string
}

// NewDeepSeek creates a DeepSeek completer.
func NewDeepSeek(cfg DeepSeekConfig) *DeepSeek {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &DeepSeek{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Complete streams a chat completion, invoking onDelta per generated chunk.
func (d *DeepSeek) Complete(ctx context.Context, messages []Message, onDelta func(string) error) (string, error) {
	stream, err := d.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    d.model,
		Messages: toOpenAI(messages),
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("opening completion stream: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", fmt.Errorf("delivering completion chunk: %w", err)
			}
		}
	}
	return answer.String(), nil
}

// toOpenAI flattens conversation turns into the OpenAI wire format.
func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text(),
		})
	}
	return out
}
