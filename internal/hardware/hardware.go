// Package hardware detects local compute capability and recommends a model
// tier that fits it.
package hardware

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/model"
	"github.com/lingua-lens/lens/pkg/protocol"
)

const unknownVendor = "unknown"

// Accelerator is what an accelerator probe found.
type Accelerator struct {
	Vendor   string
	MemoryMB int
}

// AcceleratorProbe looks for one kind of accelerator. It returns an error
// when the accelerator is absent or cannot be queried.
type AcceleratorProbe func(ctx context.Context) (Accelerator, error)

// RuntimeProbe reports whether a portable (CPU) inference runtime is
// available.
type RuntimeProbe func(ctx context.Context) bool

// Profiler runs probes and builds a HardwareProfile.
type Profiler struct {
	accelerators []AcceleratorProbe
	portable     RuntimeProbe
	logger       *zap.Logger
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithAcceleratorProbes replaces the default accelerator probes.
func WithAcceleratorProbes(probes ...AcceleratorProbe) Option {
	return func(p *Profiler) { p.accelerators = probes }
}

// WithRuntimeProbe sets the portable runtime probe.
func WithRuntimeProbe(probe RuntimeProbe) Option {
	return func(p *Profiler) { p.portable = probe }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Profiler) { p.logger = logger }
}

// NewProfiler creates a profiler with the platform accelerator probes and
// a runtime probe that looks for the ollama binary.
func NewProfiler(opts ...Option) *Profiler {
	p := &Profiler{
		accelerators: DefaultAcceleratorProbes(),
		portable:     BinaryOnPath("ollama"),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Detect probes the machine. It never fails: probe errors and panics
// degrade to "not available".
func (p *Profiler) Detect(ctx context.Context) protocol.HardwareProfile {
	profile := protocol.HardwareProfile{
		Vendor:           unknownVendor,
		RecommendedModel: model.ForTier(model.TierSmall),
	}

	for _, probe := range p.accelerators {
		acc, err := p.runAccelerator(ctx, probe)
		if err != nil {
			p.logger.Debug("accelerator probe unavailable", zap.Error(err))
			continue
		}
		profile.HasAcceleratedCompute = true
		if acc.Vendor != "" {
			profile.Vendor = acc.Vendor
		}
		profile.EstimatedMemoryMB = acc.MemoryMB
		profile.RecommendedModel = model.ForTier(model.TierForMemory(acc.MemoryMB))
		profile.CanRunLocal = true
		break
	}

	profile.HasPortableRuntime = p.runPortable(ctx)
	if !profile.HasAcceleratedCompute && profile.HasPortableRuntime {
		profile.CanRunLocal = true
		profile.RecommendedModel = model.ForTier(model.TierSmall)
	}

	p.logger.Info("hardware detected",
		zap.Bool("accelerated", profile.HasAcceleratedCompute),
		zap.Bool("portable_runtime", profile.HasPortableRuntime),
		zap.String("vendor", profile.Vendor),
		zap.Int("memory_mb", profile.EstimatedMemoryMB),
		zap.String("recommended", profile.RecommendedModel),
	)
	return profile
}

func (p *Profiler) runAccelerator(ctx context.Context, probe AcceleratorProbe) (acc Accelerator, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("accelerator probe panicked: %v", r)
		}
	}()
	return probe(ctx)
}

func (p *Profiler) runPortable(ctx context.Context) (ok bool) {
	if p.portable == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("runtime probe panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	return p.portable(ctx)
}

// Cache computes a profile once and hands out the cached copy until
// Refresh is called.
type Cache struct {
	profiler *Profiler

	mu      sync.Mutex
	profile *protocol.HardwareProfile
}

// NewCache wraps a profiler.
func NewCache(profiler *Profiler) *Cache {
	return &Cache{profiler: profiler}
}

// Get returns the cached profile, detecting on first use.
func (c *Cache) Get(ctx context.Context) protocol.HardwareProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		p := c.profiler.Detect(ctx)
		c.profile = &p
	}
	return *c.profile
}

// Peek returns the cached profile without detecting.
func (c *Cache) Peek() (protocol.HardwareProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return protocol.HardwareProfile{}, false
	}
	return *c.profile, true
}

// Refresh re-runs detection and replaces the cached profile.
func (c *Cache) Refresh(ctx context.Context) protocol.HardwareProfile {
	p := c.profiler.Detect(ctx)
	c.mu.Lock()
	c.profile = &p
	c.mu.Unlock()
	return p
}
