package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"parley/parley/utils/apperr"
	"parley/parley/utils/logging"
	"parley/parley/utils/metrics"
)

const (
	SystemPrompt = "You are a chatbot assistant. Provide clear, concise replies that capture the key points and main ideas. Keep replies within 1000 tokens. Be direct and focus on the most important information."
	QueryPreamble = "Give answer to the following question in a clear and concise manner, highlighting the key points:\n\n"

	MaxTokens   = 2000
	Temperature = 0.3
)

// Gateway answers a single question with the assistant's reply text.
type Gateway interface {
	Complete(ctx context.Context, query string) (string, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// CompletionClient talks to any OpenAI-compatible chat completions endpoint.
type CompletionClient struct {
	client *openai.Client
	model  string
}

func NewCompletionClient(opts Options) *CompletionClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &CompletionClient{client: openai.NewClientWithConfig(cfg), model: opts.Model}
}

// BuildMessages returns the fixed system/user prompt pair for query.
func BuildMessages(query string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: QueryPreamble + query},
	}
}

func (c *CompletionClient) Complete(ctx context.Context, query string) (string, error) {
	defer logging.LogDuration(ctx, "llm_complete")()
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    BuildMessages(query),
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	})
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			logging.ErrorLogger.Error("completion api error",
				zap.Int("status", apiErr.HTTPStatusCode), zap.String("message", apiErr.Message))
		}
		return "", apperr.Wrap(apperr.UpstreamError, "Internal Server Error", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Wrap(apperr.UpstreamError, "Failed to generate response.", errors.New("no choices in completion response"))
	}
	reply := resp.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", apperr.Wrap(apperr.UpstreamError, "Failed to generate response.", errors.New("empty completion content"))
	}
	logging.AppLogger.Info("completion done",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return reply, nil
}
