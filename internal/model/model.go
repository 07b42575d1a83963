// Package model provides the local model runtime interface, the Ollama
// runtime, the cloud fallback client and the model catalog.
package model

import (
	"context"

	"github.com/lingua-lens/lens/pkg/protocol"
)

// Model is a loaded local model handle.
type Model interface {
	// Generate runs inference on the model.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name returns the model identifier.
	Name() string

	// Close releases the model from the runtime.
	Close(ctx context.Context) error
}

// Runtime loads models into a local inference runtime.
type Runtime interface {
	// Load makes modelID ready for inference, reporting progress while
	// weights are fetched and loaded. Progress may be called from the
	// calling goroutine only.
	Load(ctx context.Context, modelID string, progress func(LoadProgress)) (Model, error)

	// Ping checks that the runtime is reachable.
	Ping(ctx context.Context) error

	// Name identifies the runtime in logs.
	Name() string
}

// UsageRecorder receives the token count of each completed inference.
type UsageRecorder interface {
	Record(source protocol.Source, tokens int)
}
