// Package model provides types for model inference.
package model

// Request represents a model inference request.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	JSON        bool    `json:"json,omitempty"` // Request JSON output
}

// Response represents a model inference response.
type Response struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
	DurationMs int64  `json:"duration_ms"`
}

// LoadProgress is one progress report from a runtime while loading.
type LoadProgress struct {
	Fraction float64 // 0-1, or negative when unknown
	Text     string
}
