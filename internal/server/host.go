// Package server hosts the inference router behind the message protocol:
// an in-process Host, an HTTP/websocket transport and an MCP server.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/cost"
	"github.com/lingua-lens/lens/internal/engine"
	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/router"
	"github.com/lingua-lens/lens/internal/settings"
	"github.com/lingua-lens/lens/internal/stats"
	"github.com/lingua-lens/lens/internal/subtitle"
	"github.com/lingua-lens/lens/pkg/protocol"
)

// Translation-disabled and empty-input replies.
const (
	MsgTranslationDisabled = "Translation is disabled in settings."
	MsgNothingToTranslate  = "Nothing to translate."
)

// Host owns the engine, router and progress hub and answers protocol
// requests. Safe for concurrent use.
type Host struct {
	engine   *engine.Engine
	router   *router.Router
	hardware router.HardwareSource
	hub      *engine.Hub
	settings settings.Source
	stats    *stats.Collector
	usage    *cost.Tracker
	logger   *zap.Logger
}

// Deps are the components a Host is assembled from. Hardware, Stats and
// Usage may be nil.
type Deps struct {
	Engine   *engine.Engine
	Router   *router.Router
	Hardware router.HardwareSource
	Hub      *engine.Hub
	Settings settings.Source
	Stats    *stats.Collector
	Usage    *cost.Tracker
	Logger   *zap.Logger
}

// NewHost assembles a Host.
func NewHost(d Deps) *Host {
	h := &Host{
		engine:   d.Engine,
		router:   d.Router,
		hardware: d.Hardware,
		hub:      d.Hub,
		settings: d.Settings,
		stats:    d.Stats,
		usage:    d.Usage,
		logger:   d.Logger,
	}
	if h.hub == nil {
		h.hub = engine.NewHub(0)
	}
	if h.stats == nil {
		h.stats = stats.NewCollector()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// Hub returns the progress hub that load progress is published on.
func (h *Host) Hub() *engine.Hub {
	return h.hub
}

// Stats returns a statistics snapshot.
func (h *Host) Stats() *stats.Stats {
	s := h.stats.Collect(h.router.Cache().Len())
	if h.usage != nil {
		u := h.usage.Summary()
		s.Usage = &u
	}
	return s
}

// Handle answers one request.
func (h *Host) Handle(ctx context.Context, req protocol.Request) protocol.Reply {
	switch r := req.(type) {
	case protocol.TranslateRequest:
		return h.translate(ctx, r)
	case protocol.InitEngine:
		return h.initEngine(ctx, r)
	case protocol.GetStatus:
		return h.status(ctx)
	case protocol.ClearCache:
		h.router.Cache().Clear()
		h.logger.Info("translation cache cleared")
		return protocol.Ack{}
	default:
		return protocol.Error{Error: fmt.Sprintf("unsupported request %T", req)}
	}
}

func (h *Host) translate(ctx context.Context, r protocol.TranslateRequest) protocol.Reply {
	requestID := r.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := h.logger.With(zap.String("request_id", requestID))

	s, err := h.settings.Load(ctx)
	if err != nil {
		log.Error("failed to load settings", zap.Error(err))
		return protocol.Error{RequestID: requestID, Error: errors.UserMessage(err)}
	}
	if !s.Enabled {
		return protocol.Error{RequestID: requestID, Error: MsgTranslationDisabled}
	}

	text := subtitle.Clean(r.Text)
	if text == "" {
		return protocol.Error{RequestID: requestID, Error: MsgNothingToTranslate}
	}
	sourceLang := r.SourceLang
	if sourceLang == "" {
		sourceLang = s.SourceLanguage
	}
	targetLang := r.TargetLang
	if targetLang == "" {
		targetLang = s.TargetLanguage
	}

	started := time.Now()
	out, err := h.router.Route(ctx, router.Request{Text: text, SourceLang: sourceLang, TargetLang: targetLang}, s)
	if err != nil {
		log.Info("translation failed", zap.String("code", errors.CodeOf(err)), zap.Duration("elapsed", time.Since(started)))
		return protocol.Error{RequestID: requestID, Error: errors.UserMessage(err)}
	}
	log.Debug("translated",
		zap.String("source", string(out.Source)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return protocol.TranslateResponse{RequestID: requestID, Result: out.Result, Source: out.Source}
}

func (h *Host) initEngine(ctx context.Context, r protocol.InitEngine) protocol.Reply {
	modelID := r.ModelID
	if modelID == "" {
		var err error
		modelID, err = h.defaultModel(ctx)
		if err != nil {
			return protocol.InitResult{Success: false, Error: errors.UserMessage(err)}
		}
	}

	// The engine is shared; a requester that disconnects must not abort
	// the load for everyone else.
	res, err := h.engine.Init(context.WithoutCancel(ctx), modelID, h.publish)
	switch {
	case err != nil:
		h.stats.RecordInit(err)
		h.logger.Warn("model load failed", zap.String("model", modelID), zap.Error(err))
		return protocol.InitResult{Success: false, Error: errors.UserMessage(err)}
	case res == engine.InitAlreadyLoaded:
		return protocol.InitResult{Success: true, AlreadyLoaded: true}
	case res == engine.InitInProgress:
		return protocol.InitResult{Success: true, Initializing: true}
	default:
		h.stats.RecordInit(nil)
		return protocol.InitResult{Success: true}
	}
}

// defaultModel picks the hardware recommendation when the machine can run
// locally, otherwise the user's selected model.
func (h *Host) defaultModel(ctx context.Context) (string, error) {
	s, err := h.settings.Load(ctx)
	if err != nil {
		return "", err
	}
	if h.hardware != nil {
		if p := h.hardware.Get(ctx); p.CanRunLocal {
			return p.RecommendedModel, nil
		}
	}
	return s.SelectedModel, nil
}

func (h *Host) publish(p engine.Progress) {
	h.hub.Publish(p)
}

func (h *Host) status(ctx context.Context) protocol.Reply {
	resp := protocol.StatusResponse{EngineReady: h.engine.Ready()}
	if resp.EngineReady {
		resp.ModelID = h.engine.CurrentModel()
	}
	if h.hardware != nil {
		p := h.hardware.Get(ctx)
		resp.Hardware = &p
	}
	return resp
}

// ProgressMessage converts a hub event to its wire form.
func ProgressMessage(p engine.Progress) protocol.InitProgress {
	return protocol.InitProgress{Progress: p.Percent, Status: p.Status}
}
