// Package llm wraps the OpenAI-compatible chat-completion endpoints the
// analysis operations call, with provider selection from the environment and
// a typed error taxonomy. The client itself never retries.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider identifies which completion endpoint the client talks to.
type Provider string

const (
	ProviderSiliconFlow Provider = "siliconflow"
	ProviderDeepSeek    Provider = "deepseek"
)

// KeyEnv names the environment variable holding the provider's API key.
func (p Provider) KeyEnv() string {
	if p == ProviderSiliconFlow {
		return "SF_KEY"
	}
	return "DS_KEY"
}

const (
	defaultSiliconFlowEndpoint = "https://api.siliconflow.cn/v1"
	defaultSiliconFlowModel    = "moonshotai/Kimi-K2-Instruct"
	defaultDeepSeekEndpoint    = "https://api.deepseek.com"
	defaultDeepSeekModel       = "deepseek-chat"

	// DefaultTimeout bounds one completion call end to end.
	DefaultTimeout = 300 * time.Second
)

// Client is a thin completion client bound to one provider, model, and
// endpoint. Safe for concurrent use.
type Client struct {
	provider Provider
	model    string
	endpoint string
	key      string
	api      *openai.Client
	timeout  time.Duration
	logger   *slog.Logger
}

// Options overrides per-call request parameters. Zero values fall back to the
// provider defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// NewFromEnv builds a client from the environment. The endpoint comes from
// DS_EP (default: the DeepSeek endpoint); an endpoint mentioning siliconflow
// selects the SiliconFlow provider, key, and default model, anything else the
// DeepSeek ones. Missing keys are reported on the first call, not here.
func NewFromEnv(logger *slog.Logger) *Client {
	endpoint := os.Getenv("DS_EP")
	if endpoint == "" {
		if os.Getenv("SF_KEY") != "" && os.Getenv("DS_KEY") == "" {
			endpoint = defaultSiliconFlowEndpoint
		} else {
			endpoint = defaultDeepSeekEndpoint
		}
	}

	provider := ProviderDeepSeek
	model := os.Getenv("DS_MODEL")
	if strings.Contains(endpoint, "siliconflow") {
		provider = ProviderSiliconFlow
		if model == "" {
			model = defaultSiliconFlowModel
		}
	} else if model == "" {
		model = defaultDeepSeekModel
	}

	return New(provider, endpoint, os.Getenv(provider.KeyEnv()), model, logger)
}

// New builds a client for an explicit provider, endpoint, key, and model.
func New(provider Provider, endpoint, key, model string, logger *slog.Logger) *Client {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = strings.TrimSuffix(endpoint, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider: provider,
		model:    model,
		endpoint: endpoint,
		key:      key,
		api:      openai.NewClientWithConfig(cfg),
		timeout:  DefaultTimeout,
		logger:   logger,
	}
}

// Provider returns the provider the client is bound to.
func (c *Client) Provider() Provider { return c.provider }

// Model returns the default model name.
func (c *Client) Model() string { return c.model }

// Call sends one user prompt and returns the assistant text. When the
// response carries no content (reasoning models may put everything in the
// reasoning channel), the reasoning text is returned instead.
func (c *Client) Call(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.key == "" {
		return "", &Error{Kind: ErrAuth, Provider: c.provider,
			Message: "no API key configured",
			Hint:    "set the " + c.provider.KeyEnv() + " environment variable"}
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: opts.MaxTokens,
	}
	if c.provider == ProviderSiliconFlow {
		req.Temperature = 0.2
		req.TopP = 0.7
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.TopP != 0 {
		req.TopP = opts.TopP
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.wrap(ctx, err)
	}
	c.logger.Debug("completion finished",
		"provider", c.provider, "model", model, "elapsed", time.Since(start))

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: ErrServer, Provider: c.provider, Message: "response contained no choices"}
	}
	msg := resp.Choices[0].Message
	if msg.Content != "" {
		return msg.Content, nil
	}
	return msg.ReasoningContent, nil
}

func (c *Client) wrap(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(c.provider, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classify(c.provider, reqErr.HTTPStatusCode, reqErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Provider: c.provider, Message: err.Error(),
			Hint: "the call exceeded its deadline; reduce batch size or raise the timeout"}
	}
	return &Error{Kind: ErrTransport, Provider: c.provider, Message: err.Error()}
}
