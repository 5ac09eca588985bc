package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/rkbansal/postify/config"
	"github.com/rkbansal/postify/services/providers"
	"go.uber.org/zap"
)

const (
	providerName   = "openrouter"
	defaultBaseURL = "https://openrouter.ai/api/v1"
)

// Config holds OpenRouter client settings
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	SiteURL string // sent as HTTP-Referer
	AppName string // sent as X-Title
	Timeout time.Duration

	// CatalogRetries is the transport retry budget for the idempotent model
	// listing. Completions are never retried here; the caller owns fallback.
	CatalogRetries int
}

// ConfigFrom maps application config onto client settings
func ConfigFrom(cfg config.OpenRouterConfig) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		SiteURL:        cfg.SiteURL,
		AppName:        cfg.AppName,
		Timeout:        cfg.Timeout,
		CatalogRetries: cfg.MaxRetries,
	}
}

// Client talks to OpenRouter's OpenAI-compatible API
type Client struct {
	client openaisdk.Client
	config Config
	logger *zap.Logger
}

var _ providers.Gateway = (*Client)(nil)

// New creates a new OpenRouter client. Returns an error if the API key is missing.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: missing api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.AppName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.AppName))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		client: openaisdk.NewClient(opts...),
		config: cfg,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (c *Client) Name() string { return providerName }

// Complete performs a single, non-streaming chat completion
func (c *Client) Complete(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	start := time.Now()

	params := buildParams(req)
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.convertError(err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, providers.NewProviderError(providerName, "empty_response", "no content generated", 0, false, nil)
	}

	choice := completion.Choices[0]
	resp := &providers.ChatResponse{
		ID:           completion.ID,
		Model:        completion.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: providers.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Latency: time.Since(start),
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}

	c.logger.Debug("completion received",
		zap.String("model", req.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency),
	)
	return resp, nil
}

type catalogResponse struct {
	Data []providers.ModelDescriptor `json:"data"`
}

// ListModels fetches the full model catalog
func (c *Client) ListModels(ctx context.Context) ([]providers.ModelDescriptor, error) {
	var resp catalogResponse
	err := c.client.Get(ctx, "models", nil, &resp, option.WithMaxRetries(c.config.CatalogRetries))
	if err != nil {
		return nil, c.convertError(err)
	}
	return resp.Data, nil
}

func buildParams(req *providers.ChatRequest) openaisdk.ChatCompletionNewParams {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case providers.RoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openaisdk.UserMessage(m.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// convertError maps SDK errors onto ProviderError. Only rate limiting (429)
// and overload (503) are retryable; the fallback chain backs off on those.
func (c *Client) convertError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		retryable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusServiceUnavailable
		return providers.NewProviderError(providerName, apiErr.Type, msg, apiErr.StatusCode, retryable, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return providers.NewProviderError(providerName, "timeout", err.Error(), 0, false, err)
	}
	return providers.NewProviderError(providerName, "transport", err.Error(), 0, false, err)
}
