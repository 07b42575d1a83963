package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/errors"
)

// OllamaConfig configures the Ollama runtime client.
type OllamaConfig struct {
	BaseURL   string // Default: http://localhost:11434
	KeepAlive string // How long the runtime keeps a model resident, e.g. "30m"
}

// DefaultOllamaConfig returns default configuration for a local Ollama.
func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		BaseURL:   "http://localhost:11434",
		KeepAlive: "30m",
	}
}

// OllamaRuntime implements Runtime on top of the Ollama HTTP API.
// Loading a model pulls it (streaming download progress) and then warms
// it into memory; Close evicts it.
type OllamaRuntime struct {
	cfg    *OllamaConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewOllamaRuntime creates a runtime client. Requests are bounded by the
// caller's context only, since pulls can legitimately take minutes.
func NewOllamaRuntime(cfg *OllamaConfig, logger *zap.Logger) *OllamaRuntime {
	if cfg == nil {
		cfg = DefaultOllamaConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")
	return &OllamaRuntime{cfg: cfg, http: client, logger: logger}
}

// Name returns the runtime name.
func (r *OllamaRuntime) Name() string {
	return "ollama"
}

// Ping checks the runtime answers /api/version.
func (r *OllamaRuntime) Ping(ctx context.Context) error {
	var out struct {
		Version string `json:"version"`
	}
	resp, err := r.http.R().SetContext(ctx).SetResult(&out).Get("/api/version")
	if err != nil {
		return errors.Wrap(err, errors.CodeNetworkUnavailable, "ollama runtime unreachable", errors.CategoryTemporary)
	}
	if resp.IsError() {
		return errors.Temporary(errors.CodeModelUnavailable, fmt.Sprintf("ollama version check: %s", resp.Status()))
	}
	r.logger.Debug("ollama runtime reachable", zap.String("version", out.Version))
	return nil
}

// Load pulls modelID and warms it into memory.
func (r *OllamaRuntime) Load(ctx context.Context, modelID string, progress func(LoadProgress)) (Model, error) {
	if progress == nil {
		progress = func(LoadProgress) {}
	}
	if err := r.pull(ctx, modelID, progress); err != nil {
		return nil, err
	}

	progress(LoadProgress{Fraction: -1, Text: "Loading model into memory..."})
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": modelID, "keep_alive": r.cfg.KeepAlive}).
		Post("/api/generate")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "ollama warm-up request failed", errors.CategoryTemporary)
	}
	if resp.IsError() {
		return nil, errors.NewBuilder(errors.CodeModelUnavailable, fmt.Sprintf("ollama warm-up: %s", resp.Status())).
			Permanent().
			WithContext("response", resp.String()).
			Build()
	}

	return &ollamaModel{id: modelID, runtime: r}, nil
}

type pullEvent struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

func (r *OllamaRuntime) pull(ctx context.Context, modelID string, progress func(LoadProgress)) error {
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": modelID, "stream": true}).
		SetDoNotParseResponse(true).
		Post("/api/pull")
	if err != nil {
		return errors.Wrap(err, errors.CodeNetworkUnavailable, "ollama pull request failed", errors.CategoryTemporary)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 4096))
		return errors.NewBuilder(errors.CodeModelUnavailable, fmt.Sprintf("ollama pull: http %d", resp.StatusCode())).
			Permanent().
			WithContext("response", strings.TrimSpace(string(snippet))).
			Build()
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev pullEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			r.logger.Debug("skipping unreadable pull event", zap.ByteString("line", line))
			continue
		}
		if ev.Error != "" {
			return errors.NewBuilder(errors.CodeModelUnavailable, "ollama pull failed").
				Permanent().
				Wrap(fmt.Errorf("%s", ev.Error)).
				WithSuggestion("Check the model name exists in the Ollama library").
				Build()
		}
		fraction := -1.0
		if ev.Total > 0 {
			fraction = float64(ev.Completed) / float64(ev.Total)
		}
		progress(LoadProgress{Fraction: fraction, Text: describePullStatus(ev.Status)})
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.CodeNetworkUnavailable, "ollama pull stream interrupted", errors.CategoryTemporary)
	}
	return nil
}

func describePullStatus(status string) string {
	switch {
	case status == "pulling manifest":
		return "Fetching model manifest..."
	case strings.HasPrefix(status, "pulling "):
		return "Downloading model data..."
	case strings.HasPrefix(status, "verifying"):
		return "Verifying download..."
	case status == "writing manifest":
		return "Finalizing download..."
	case status == "success":
		return "Download complete"
	default:
		return status
	}
}

// ============================================================
// Loaded model handle
// ============================================================

type ollamaModel struct {
	id      string
	runtime *OllamaRuntime
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	Format    string         `json:"format,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
}

type ollamaChatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`

	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	TotalDuration   int64 `json:"total_duration"`
}

func (m *ollamaModel) Name() string {
	return m.id
}

func (m *ollamaModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	options := map[string]any{"temperature": req.Temperature}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	body := ollamaChatRequest{
		Model:     m.id,
		Messages:  messages,
		Options:   options,
		KeepAlive: m.runtime.cfg.KeepAlive,
	}
	if req.JSON {
		body.Format = "json"
	}

	started := time.Now()
	var out ollamaChatResponse
	resp, err := m.runtime.http.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/api/chat")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "ollama chat request failed", errors.CategoryTemporary)
	}
	if resp.IsError() {
		return nil, errors.NewBuilder(errors.CodeModelUnavailable, fmt.Sprintf("ollama chat: %s", resp.Status())).
			Temporary().
			WithContext("response", resp.String()).
			Build()
	}

	return &Response{
		Text:       out.Message.Content,
		TokensUsed: out.PromptEvalCount + out.EvalCount,
		Model:      m.id,
		DurationMs: time.Since(started).Milliseconds(),
	}, nil
}

// Close asks the runtime to evict the model (keep_alive 0).
func (m *ollamaModel) Close(ctx context.Context) error {
	resp, err := m.runtime.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": m.id, "keep_alive": 0}).
		Post("/api/generate")
	if err != nil {
		return errors.Wrap(err, errors.CodeNetworkUnavailable, "ollama unload request failed", errors.CategoryTemporary)
	}
	if resp.IsError() {
		return errors.Temporary(errors.CodeModelUnavailable, fmt.Sprintf("ollama unload: %s", resp.Status()))
	}
	return nil
}
