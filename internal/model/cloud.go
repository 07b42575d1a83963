package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/prompt"
	"github.com/lingua-lens/lens/pkg/protocol"
)

// CloudConfig configures the cloud fallback client.
type CloudConfig struct {
	Model     string        // Default: gpt-4o-mini
	Timeout   time.Duration // Default: 10s
	MaxTokens int           // Default: 150
}

// DefaultCloudConfig returns default configuration for the cloud client.
func DefaultCloudConfig() *CloudConfig {
	return &CloudConfig{
		Model:     "gpt-4o-mini",
		Timeout:   10 * time.Second,
		MaxTokens: 150,
	}
}

// Endpoint is an OpenAI-compatible API location taken from user settings.
type Endpoint struct {
	URL    string
	APIKey string
}

// Configured reports whether the endpoint has a URL.
func (e Endpoint) Configured() bool {
	return strings.TrimSpace(e.URL) != ""
}

// CloudClient translates through an OpenAI-compatible chat completions API.
// It holds no per-request state; the endpoint comes with each call.
type CloudClient struct {
	cfg    *CloudConfig
	client *http.Client
	usage  UsageRecorder
}

// NewCloudClient creates a new cloud client.
func NewCloudClient(cfg *CloudConfig) *CloudClient {
	if cfg == nil {
		cfg = DefaultCloudConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &CloudClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type completionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// WithUsage records the token usage the API reports for each completion.
func (c *CloudClient) WithUsage(r UsageRecorder) *CloudClient {
	c.usage = r
	return c
}

// Translate sends one completion request and parses the first choice.
func (c *CloudClient) Translate(ctx context.Context, text, sourceLang, targetLang string, ep Endpoint) (protocol.TranslationResult, error) {
	if !ep.Configured() {
		return protocol.TranslationResult{}, errors.NewBuilder(errors.CodeModelUnavailable, "cloud endpoint not configured").
			User().
			WithSuggestion("Set a cloud API URL in settings").
			Build()
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	p := prompt.Build(text, sourceLang, targetLang)
	body, err := json.Marshal(completionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		MaxTokens:      c.cfg.MaxTokens,
		Temperature:    0.1,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return protocol.TranslationResult{}, errors.Wrap(err, errors.CodeModelInvalidResponse, "failed to marshal request", errors.CategoryPermanent)
	}

	url := strings.TrimRight(ep.URL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return protocol.TranslationResult{}, errors.Wrap(err, errors.CodeNetworkUnavailable, "failed to create HTTP request", errors.CategoryTemporary)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return protocol.TranslationResult{}, c.transportError(parent, ctx, err, "network request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.TranslationResult{}, c.transportError(parent, ctx, err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return protocol.TranslationResult{}, errors.NewBuilder(errors.CodeCloudStatus, fmt.Sprintf("Cloud API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))).
			Temporary().
			WithContext("status", resp.StatusCode).
			WithContext("response", string(respBody)).
			Build()
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return protocol.TranslationResult{}, errors.Wrap(err, errors.CodeModelInvalidResponse, "failed to parse cloud response", errors.CategoryPermanent)
	}

	if c.usage != nil {
		c.usage.Record(protocol.SourceCloud, out.Usage.TotalTokens)
	}

	content := ""
	if len(out.Choices) > 0 {
		content = out.Choices[0].Message.Content
	}
	return prompt.Parse(content), nil
}

// transportError classifies a failed round trip: the caller leaving,
// the request deadline, or the network.
func (c *CloudClient) transportError(parent, ctx context.Context, err error, message string) error {
	switch {
	case parent.Err() != nil:
		return errors.Cancelled(parent)
	case ctx.Err() == context.DeadlineExceeded:
		return errors.NewBuilder(errors.CodeModelTimeout, fmt.Sprintf("cloud request timed out after %v", c.cfg.Timeout)).
			Temporary().
			Wrap(err).
			Build()
	default:
		return errors.Wrap(err, errors.CodeNetworkUnavailable, message, errors.CategoryTemporary)
	}
}
