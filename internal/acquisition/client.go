// Package acquisition talks to the remote invoice acquisition service, which
// downloads the invoice for a CUFE and reports progress over server-sent events.
package acquisition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rezonia/cufe-expenses/internal/model"
)

// DefaultPath is the streaming endpoint of the acquisition service
const DefaultPath = "/api/process-cufe-stream"

// Request starts an acquisition. MaxRetries is forwarded to the service;
// the client itself never retries.
type Request struct {
	CUFE          string `json:"cufe"`
	MaxRetries    int    `json:"maxRetries,omitempty"`
	CaptchaAPIKey string `json:"captchaApiKey,omitempty"`
}

// Client opens acquisition streams
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. Its Timeout bounds the whole stream.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithPath overrides DefaultPath
func WithPath(path string) ClientOption {
	return func(c *Client) {
		c.path = path
	}
}

// NewClient creates an acquisition client for the service at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire opens the event stream for req. Failures to connect and non-2xx
// responses are NETWORK_ERROR processing errors. The caller must Close the stream.
func (c *Client) Acquire(ctx context.Context, req Request) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode acquisition request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, model.NewProcessingError(model.KindNetwork, "build acquisition request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	c.logger.Info().Str("cufe", req.CUFE).Int("max_retries", req.MaxRetries).Msg("opening acquisition stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, model.NewProcessingError(model.KindNetwork, "connect to acquisition service", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		defer cancel()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, model.NewProcessingError(model.KindNetwork,
			fmt.Sprintf("acquisition service returned %d", resp.StatusCode),
			errorBody(msg))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, model.NewProcessingError(model.KindNetwork,
			fmt.Sprintf("unexpected content type %q", ct), nil)
	}

	return newStream(streamCtx, cancel, resp.Body, c.logger), nil
}

func errorBody(b []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s", payload.Error)
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return fmt.Errorf("%s", s)
	}
	return nil
}
