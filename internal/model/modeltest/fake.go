// Package modeltest provides an in-memory model.Runtime for tests.
package modeltest

import (
	"context"
	"sync"

	"github.com/lingua-lens/lens/internal/model"
)

// Runtime is a scriptable model.Runtime.
type Runtime struct {
	// Steps are reported, in order, by every Load.
	Steps []model.LoadProgress
	// LoadErr fails every Load after its steps are reported.
	LoadErr error
	// Gate, when set, holds Load until it is closed or ctx ends.
	Gate chan struct{}
	// Started, when set, receives the model ID as each Load begins.
	Started chan string
	// Generate answers inference calls. Defaults to an empty JSON object.
	Generate func(ctx context.Context, modelID string, req *model.Request) (*model.Response, error)
	// PingErr is returned by Ping.
	PingErr error

	mu     sync.Mutex
	loads  []string
	closed []string
	reqs   []model.Request
}

// Name implements model.Runtime.
func (r *Runtime) Name() string { return "fake" }

// Ping implements model.Runtime.
func (r *Runtime) Ping(context.Context) error { return r.PingErr }

// Load implements model.Runtime.
func (r *Runtime) Load(ctx context.Context, modelID string, progress func(model.LoadProgress)) (model.Model, error) {
	r.mu.Lock()
	r.loads = append(r.loads, modelID)
	r.mu.Unlock()

	if r.Started != nil {
		r.Started <- modelID
	}
	for _, s := range r.Steps {
		if progress != nil {
			progress(s)
		}
	}
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	return &handle{id: modelID, rt: r}, nil
}

// Loads returns the model IDs passed to Load.
func (r *Runtime) Loads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loads...)
}

// Closed returns the model IDs whose handles were closed.
func (r *Runtime) Closed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.closed...)
}

// Requests returns every inference request received.
func (r *Runtime) Requests() []model.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Request(nil), r.reqs...)
}

type handle struct {
	id string
	rt *Runtime
}

func (h *handle) Name() string { return h.id }

func (h *handle) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	h.rt.mu.Lock()
	h.rt.reqs = append(h.rt.reqs, *req)
	h.rt.mu.Unlock()

	if h.rt.Generate != nil {
		return h.rt.Generate(ctx, h.id, req)
	}
	return &model.Response{Text: "{}", Model: h.id}, nil
}

func (h *handle) Close(context.Context) error {
	h.rt.mu.Lock()
	defer h.rt.mu.Unlock()
	h.rt.closed = append(h.rt.closed, h.id)
	return nil
}

// Reply returns a Generate func that always answers text.
func Reply(text string) func(context.Context, string, *model.Request) (*model.Response, error) {
	return func(_ context.Context, modelID string, _ *model.Request) (*model.Response, error) {
		return &model.Response{Text: text, Model: modelID}, nil
	}
}
