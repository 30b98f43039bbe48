package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/errs"
)

// Client forwards free-text questions to an OpenAI-compatible completion
// endpoint (OpenRouter by default). No retries: a failed call surfaces
// immediately to the caller.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

func New(apiKey, baseURL, model string, maxTokens int, timeout time.Duration, logger *zap.Logger) *Client {
	c := &Client{
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
	if apiKey == "" {
		return c
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Ask sends a single completion request and returns the generated text.
// A missing credential fails before any network call.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	if c.api == nil {
		return "", &errs.ConfigError{Key: "OPENROUTER_API_KEY"}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", &errs.ServiceError{Service: "completion", Err: err}
	}
	return c.extractAnswer(resp), nil
}

// extractor pulls answer text out of one known response shape.
type extractor func(openai.ChatCompletionResponse) (string, bool)

// Applied in order, first success wins; the raw serialized response is the
// last resort so the user always sees something.
var extractors = []struct {
	name string
	fn   extractor
}{
	{"choice_content", firstChoiceContent},
	{"raw_response", rawResponse},
}

func (c *Client) extractAnswer(resp openai.ChatCompletionResponse) string {
	for i, e := range extractors {
		text, ok := e.fn(resp)
		if !ok {
			continue
		}
		if i > 0 {
			c.logger.Warn("Unexpected completion response shape",
				zap.String("extractor", e.name))
		}
		return text
	}
	return ""
}

func firstChoiceContent(resp openai.ChatCompletionResponse) (string, bool) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", false
	}
	return resp.Choices[0].Message.Content, true
}

func rawResponse(resp openai.ChatCompletionResponse) (string, bool) {
	b, err := json.Marshal(resp)
	if err != nil {
		return "", false
	}
	return string(b), true
}
