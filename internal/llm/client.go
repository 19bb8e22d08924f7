package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 4096
)

// ErrNoChoices is returned when a completion carries no message
var ErrNoChoices = errors.New("no choices in response")

// Default models for different tasks
const (
	ModelClaude35Sonnet = "anthropic/claude-3.5-sonnet"
	ModelClaude3Haiku   = "anthropic/claude-3-haiku"
	ModelGPT4oMini      = "openai/gpt-4o-mini"
	ModelGPT4o          = "openai/gpt-4o"
	ModelGeminiFlash    = "google/gemini-flash-1.5"
)

// Client handles communication with OpenAI-compatible APIs
type Client struct {
	sdk          openai.Client
	defaultModel string
	maxTokens    int64
	temperature  float64
	logger       zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL      string
	timeout      time.Duration
	defaultModel string
	maxRetries   int
	maxTokens    int64
	temperature  float64
	httpClient   *http.Client
	logger       zerolog.Logger
}

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.baseURL = url
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.timeout = timeout
	}
}

func WithDefaultModel(model string) ClientOption {
	return func(cfg *clientConfig) {
		if model != "" {
			cfg.defaultModel = model
		}
	}
}

// WithMaxRetries overrides the SDK retry count
func WithMaxRetries(n int) ClientOption {
	return func(cfg *clientConfig) {
		cfg.maxRetries = n
	}
}

// WithMaxTokens caps the completion length
func WithMaxTokens(n int64) ClientOption {
	return func(cfg *clientConfig) {
		if n > 0 {
			cfg.maxTokens = n
		}
	}
}

func WithTemperature(t float64) ClientOption {
	return func(cfg *clientConfig) {
		cfg.temperature = t
	}
}

// WithHTTPClient replaces the HTTP client; the timeout option is then ignored.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		cfg.httpClient = hc
	}
}

func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = l
	}
}

// NewClient creates a client for an OpenAI-compatible endpoint (OpenRouter by default).
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		baseURL:      DefaultBaseURL,
		timeout:      DefaultTimeout,
		defaultModel: ModelGPT4oMini,
		maxRetries:   2,
		maxTokens:    DefaultMaxTokens,
		temperature:  0.1,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	sdk := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.maxRetries),
		// OpenRouter attribution headers; ignored by other providers
		option.WithHeader("HTTP-Referer", "https://github.com/rezonia/cufe-expenses"),
		option.WithHeader("X-Title", "CUFE Expenses"),
	)

	return &Client{
		sdk:          sdk,
		defaultModel: cfg.defaultModel,
		maxTokens:    cfg.maxTokens,
		temperature:  cfg.temperature,
		logger:       cfg.logger,
	}
}

// DefaultModel returns the model used when a call does not name one
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// ChatText sends one system and one user message and returns the first choice.
func (c *Client) ChatText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = c.defaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	start := time.Now()
	resp, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		MaxTokens:   param.NewOpt(c.maxTokens),
		Temperature: param.NewOpt(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug().
		Str("model", resp.Model).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Str("finish_reason", resp.Choices[0].FinishReason).
		Msg("chat completion")

	return resp.Choices[0].Message.Content, nil
}

// Model is one entry of the provider's model catalogue
type Model struct {
	ID      string    `json:"id"`
	OwnedBy string    `json:"owned_by,omitempty"`
	Created time.Time `json:"created,omitempty"`
}

// ListModels returns the models offered by the endpoint, sorted by ID.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	page, err := c.sdk.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		out := Model{ID: m.ID, OwnedBy: m.OwnedBy}
		if m.Created > 0 {
			out.Created = time.Unix(m.Created, 0).UTC()
		}
		models = append(models, out)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// ExtractJSON extracts JSON from LLM response (handles markdown code blocks)
func ExtractJSON(response string) string {
	if start := strings.Index(response, "```json"); start != -1 {
		start += 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		// skip language identifier
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}
	// prose around a bare object
	if i := strings.Index(response, "{"); i > 0 {
		if j := strings.LastIndex(response, "}"); j > i {
			return response[i : j+1]
		}
	}
	return response
}
