// Package engine owns the local inference engine: the lifecycle of one
// loaded model handle and translation against it.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/model"
	"github.com/lingua-lens/lens/internal/prompt"
	"github.com/lingua-lens/lens/pkg/protocol"
)

// State is the engine lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// InitResult says what Init did.
type InitResult int

const (
	// InitLoaded means the model was loaded by this call.
	InitLoaded InitResult = iota
	// InitAlreadyLoaded means the requested model was already ready.
	InitAlreadyLoaded
	// InitInProgress means another load was running; nothing was done.
	InitInProgress
)

// String returns the result name.
func (r InitResult) String() string {
	switch r {
	case InitLoaded:
		return "loaded"
	case InitAlreadyLoaded:
		return "already_loaded"
	case InitInProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// Progress is one load progress report.
type Progress struct {
	Percent int
	Status  string
}

// ProgressFunc receives load progress.
type ProgressFunc func(Progress)

// ReadyStatus is the final progress status of a successful load.
const ReadyStatus = "Model ready"

// Generation parameters for local translation.
const (
	maxTokens   = 300
	temperature = 0.1
	topP        = 0.9
)

// Engine holds at most one loaded model. Loads are mutually exclusive;
// translation does not take the lock once a handle is ready.
type Engine struct {
	runtime     model.Runtime
	logger      *zap.Logger
	loadTimeout time.Duration
	usage       model.UsageRecorder

	mu      sync.Mutex
	state   State
	modelID string
	handle  model.Model
	gen     uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLoadTimeout bounds a single load. Zero means no bound.
func WithLoadTimeout(d time.Duration) Option {
	return func(e *Engine) { e.loadTimeout = d }
}

// WithUsage records the tokens spent on each local translation.
func WithUsage(r model.UsageRecorder) Option {
	return func(e *Engine) { e.usage = r }
}

// New creates an empty engine backed by rt.
func New(rt model.Runtime, opts ...Option) *Engine {
	e := &Engine{
		runtime: rt,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init loads modelID. It is a no-op when that model is already ready or
// when any load is already in progress. Switching to a different model
// releases the current handle first. Load failures return the engine to
// Empty and are returned to the caller, not reported through onProgress.
func (e *Engine) Init(ctx context.Context, modelID string, onProgress ProgressFunc) (InitResult, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	e.mu.Lock()
	var previous model.Model
	switch e.state {
	case StateLoading:
		e.mu.Unlock()
		return InitInProgress, nil
	case StateReady:
		if e.modelID == modelID {
			e.mu.Unlock()
			return InitAlreadyLoaded, nil
		}
		previous = e.handle
		e.handle = nil
	}
	e.state = StateLoading
	e.modelID = modelID
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	log := e.logger.With(zap.String("model", modelID), zap.String("runtime", e.runtime.Name()))
	if previous != nil {
		log.Info("switching model", zap.String("previous", previous.Name()))
		if err := previous.Close(ctx); err != nil {
			log.Warn("failed to release previous model", zap.Error(err))
		}
	}

	loadCtx := ctx
	if e.loadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, e.loadTimeout)
		defer cancel()
	}

	log.Info("loading model")
	started := time.Now()
	percent := 0
	handle, err := e.runtime.Load(loadCtx, modelID, func(p model.LoadProgress) {
		if p.Fraction >= 0 {
			percent = toPercent(p.Fraction)
		}
		onProgress(Progress{Percent: percent, Status: p.Text})
	})

	e.mu.Lock()
	if e.gen != gen {
		// Unloaded while loading; the new handle is not wanted.
		e.mu.Unlock()
		if handle != nil {
			_ = handle.Close(context.WithoutCancel(ctx))
		}
		if err != nil {
			return 0, loadFailed(modelID, err)
		}
		return 0, errors.NewBuilder(errors.CodeEngineLoadFailed, "model load was cancelled by unload").
			Temporary().
			WithContext("model", modelID).
			Build()
	}
	if err != nil {
		e.state = StateEmpty
		e.modelID = ""
		e.mu.Unlock()
		log.Error("model load failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return 0, loadFailed(modelID, err)
	}
	e.state = StateReady
	e.handle = handle
	e.mu.Unlock()

	log.Info("model ready", zap.Duration("elapsed", time.Since(started)))
	onProgress(Progress{Percent: 100, Status: ReadyStatus})
	return InitLoaded, nil
}

func loadFailed(modelID string, err error) error {
	return errors.NewBuilder(errors.CodeEngineLoadFailed, "failed to load model "+modelID).
		Temporary().
		Wrap(err).
		WithSuggestion("Check that the local runtime is running").
		WithSuggestion("Try a smaller model").
		Build()
}

func toPercent(fraction float64) int {
	p := int(math.Round(fraction * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Translate runs one translation on the ready model.
func (e *Engine) Translate(ctx context.Context, text, sourceLang, targetLang string) (protocol.TranslationResult, error) {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return protocol.TranslationResult{}, errors.NewBuilder(errors.CodeEngineNotInitialized, "engine not initialized").
			Temporary().
			WithSuggestion("Load a model first").
			Build()
	}
	handle := e.handle
	e.mu.Unlock()

	p := prompt.Build(text, sourceLang, targetLang)
	resp, err := handle.Generate(ctx, &model.Request{
		System:      p.System,
		Prompt:      p.User,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		JSON:        true,
	})
	if err != nil {
		return protocol.TranslationResult{}, err
	}
	if e.usage != nil {
		e.usage.Record(protocol.SourceLocal, resp.TokensUsed)
	}
	return prompt.Parse(resp.Text), nil
}

// Unload releases the model and resets to Empty. Safe to call repeatedly.
func (e *Engine) Unload(ctx context.Context) error {
	e.mu.Lock()
	handle := e.handle
	wasActive := e.state != StateEmpty
	e.handle = nil
	e.state = StateEmpty
	e.modelID = ""
	if wasActive {
		e.gen++
	}
	e.mu.Unlock()

	if handle == nil {
		return nil
	}
	e.logger.Info("unloading model", zap.String("model", handle.Name()))
	return handle.Close(ctx)
}

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentModel returns the loaded (or loading) model ID, or "".
func (e *Engine) CurrentModel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modelID
}
