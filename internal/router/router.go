// Package router picks the tier that serves a translation: the cache, the
// local engine, then the cloud fallback.
package router

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lingua-lens/lens/internal/cache"
	"github.com/lingua-lens/lens/internal/engine"
	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/model"
	"github.com/lingua-lens/lens/internal/settings"
	"github.com/lingua-lens/lens/internal/stats"
	"github.com/lingua-lens/lens/pkg/protocol"
)

// DefaultLocalTimeout bounds one local translation.
const DefaultLocalTimeout = 15 * time.Second

// Exhaustion messages, chosen by engine readiness.
const (
	MsgTranslationFailed = "Translation failed. Please try again."
	MsgModelNotLoaded    = "Model not loaded yet. Load a model to translate locally, or enable cloud fallback in settings."
)

// LocalEngine is the local tier.
type LocalEngine interface {
	Ready() bool
	State() engine.State
	Init(ctx context.Context, modelID string, onProgress engine.ProgressFunc) (engine.InitResult, error)
	Translate(ctx context.Context, text, sourceLang, targetLang string) (protocol.TranslationResult, error)
}

// CloudTranslator is the cloud tier.
type CloudTranslator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string, ep model.Endpoint) (protocol.TranslationResult, error)
}

// HardwareSource supplies the cached hardware profile for lazy init.
type HardwareSource interface {
	Get(ctx context.Context) protocol.HardwareProfile
}

// Request is one subtitle line to translate.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Outcome is a translation and the tier that produced it.
type Outcome struct {
	Result protocol.TranslationResult
	Source protocol.Source
}

// Router is safe for concurrent use.
type Router struct {
	engine LocalEngine
	cloud  CloudTranslator
	cache  *cache.Cache

	hardware HardwareSource
	hub      *engine.Hub
	lazyInit bool

	dedup bool
	group singleflight.Group

	localTimeout time.Duration
	stats        *stats.Collector
	logger       *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithStats records route outcomes in c.
func WithStats(c *stats.Collector) Option {
	return func(r *Router) { r.stats = c }
}

// WithLocalTimeout overrides DefaultLocalTimeout.
func WithLocalTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.localTimeout = d
		}
	}
}

// WithLazyInit makes Route load a model when the engine is empty, choosing
// it from the hardware profile and publishing progress to hub.
func WithLazyInit(hw HardwareSource, hub *engine.Hub) Option {
	return func(r *Router) {
		r.lazyInit = hw != nil
		r.hardware = hw
		r.hub = hub
	}
}

// WithDedup collapses concurrent misses for the same line into one
// translation.
func WithDedup(enabled bool) Option {
	return func(r *Router) { r.dedup = enabled }
}

// New creates a router. cloud may be nil to disable the cloud tier.
func New(eng LocalEngine, cloud CloudTranslator, c *cache.Cache, opts ...Option) *Router {
	r := &Router{
		engine:       eng,
		cloud:        cloud,
		cache:        c,
		localTimeout: DefaultLocalTimeout,
		stats:        stats.NewCollector(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the router's cache.
func (r *Router) Cache() *cache.Cache {
	return r.cache
}

// Route translates req, trying each tier in order. Individual tier
// failures are logged; an error is returned only when every tier failed
// or ctx ended first (REQUEST_CANCELLED).
func (r *Router) Route(ctx context.Context, req Request, s settings.Settings) (Outcome, error) {
	started := time.Now()
	key := cache.Key(req.Text, req.SourceLang, req.TargetLang)

	if result, ok := r.cache.Get(key); ok {
		r.stats.RecordRoute(protocol.SourceCache, time.Since(started))
		return Outcome{Result: result, Source: protocol.SourceCache}, nil
	}

	var out Outcome
	var err error
	if r.dedup {
		flight := key + "|" + strconv.FormatBool(s.UseCloudFallback) + "|" + s.CloudAPIURL
		// The flight is shared, so it runs detached from this caller; the
		// tier timeouts still bound it.
		detached := context.WithoutCancel(ctx)
		ch := r.group.DoChan(flight, func() (any, error) {
			return r.miss(detached, key, req, s)
		})
		select {
		case res := <-ch:
			err = res.Err
			if err == nil {
				out = res.Val.(Outcome)
			}
		case <-ctx.Done():
			return Outcome{}, errors.Cancelled(ctx)
		}
	} else {
		out, err = r.miss(ctx, key, req, s)
	}
	if err != nil {
		return Outcome{}, err
	}
	r.stats.RecordRoute(out.Source, time.Since(started))
	return out, nil
}

func (r *Router) miss(ctx context.Context, key string, req Request, s settings.Settings) (Outcome, error) {
	// A flight that finished just before this one may have filled the key.
	if result, ok := r.cache.Get(key); ok {
		return Outcome{Result: result, Source: protocol.SourceCache}, nil
	}

	log := r.logger.With(
		zap.String("source_lang", req.SourceLang),
		zap.String("target_lang", req.TargetLang),
	)

	if r.lazyInit && r.engine.State() == engine.StateEmpty {
		r.initLazily(ctx, s, log)
		if ctx.Err() != nil {
			return Outcome{}, errors.Cancelled(ctx)
		}
	}

	if r.engine.Ready() {
		result, err := errors.WithTimeoutResult(ctx, r.localTimeout, func(ctx context.Context) (protocol.TranslationResult, error) {
			return r.engine.Translate(ctx, req.Text, req.SourceLang, req.TargetLang)
		})
		if err == nil {
			r.cache.Set(key, result)
			return Outcome{Result: result, Source: protocol.SourceLocal}, nil
		}
		if errors.HasCode(err, errors.CodeRequestCancelled) {
			return Outcome{}, err
		}
		r.stats.RecordTierFailure(protocol.SourceLocal)
		log.Warn("local inference failed", zap.String("tier", string(protocol.SourceLocal)), zap.Error(err))
	}

	ep := model.Endpoint{URL: s.CloudAPIURL, APIKey: s.CloudAPIKey}
	if r.cloud != nil && s.UseCloudFallback && ep.Configured() {
		result, err := r.cloud.Translate(ctx, req.Text, req.SourceLang, req.TargetLang, ep)
		if err == nil {
			r.cache.Set(key, result)
			return Outcome{Result: result, Source: protocol.SourceCloud}, nil
		}
		if errors.HasCode(err, errors.CodeRequestCancelled) {
			return Outcome{}, err
		}
		r.stats.RecordTierFailure(protocol.SourceCloud)
		log.Warn("cloud fallback failed", zap.String("tier", string(protocol.SourceCloud)), zap.Error(err))
	}

	r.stats.RecordExhaustion()
	if r.engine.Ready() {
		return Outcome{}, errors.NewBuilder(errors.CodeTranslationFailed, MsgTranslationFailed).
			Temporary().
			Build()
	}
	return Outcome{}, errors.NewBuilder(errors.CodeModelNotLoaded, MsgModelNotLoaded).
		User().
		WithSuggestion("Run `lens init` to download and load a model").
		WithSuggestion("Or set useCloudFallback and cloudApiUrl in settings").
		Build()
}

// initLazily loads a model for the shared engine. The load is detached
// from the triggering request: if that request goes away first, initLazily
// returns and the load carries on for everyone else.
func (r *Router) initLazily(ctx context.Context, s settings.Settings, log *zap.Logger) {
	loadCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		profile := r.hardware.Get(loadCtx)
		modelID := s.SelectedModel
		if profile.CanRunLocal {
			modelID = profile.RecommendedModel
		}

		log.Info("engine empty, loading model on first request", zap.String("model", modelID))
		_, err := r.engine.Init(loadCtx, modelID, func(p engine.Progress) {
			if r.hub != nil {
				r.hub.Publish(p)
			}
		})
		r.stats.RecordInit(err)
		if err != nil {
			log.Warn("lazy model load failed", zap.String("tier", string(protocol.SourceLocal)), zap.Error(err))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Info("requester left during model load, load continues")
	}
}
