package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docqa/internal/config"
)

// OpenAIClient implements Completer on top of an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

var _ Completer = (*OpenAIClient)(nil)

// Option customizes an OpenAIClient.
type Option func(*openaiOptions)

type openaiOptions struct {
	httpClient *http.Client
	timeout    time.Duration
}

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *openaiOptions) { o.httpClient = c }
}

// WithTimeout overrides the configured per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *openaiOptions) { o.timeout = d }
}

// NewOpenAI builds a client from cfg. Outbound requests carry trace context.
func NewOpenAI(cfg config.OpenAIConfig, opts ...Option) *OpenAIClient {
	o := openaiOptions{timeout: cfg.Timeout()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = o.httpClient

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   o.timeout,
	}
}

// Messages builds the two-message prompt for question.
func Messages(question, docContext string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: UserPrompt(question, docContext)},
	}
}

// Complete sends one chat completion request and returns the trimmed answer.
func (c *OpenAIClient) Complete(ctx context.Context, question, docContext string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  Messages(question, docContext),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		// Returned as is: its text doubles as the "Error: ..." answer.
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
