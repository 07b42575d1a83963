package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/cache"
	"github.com/lingua-lens/lens/internal/config"
	"github.com/lingua-lens/lens/internal/cost"
	"github.com/lingua-lens/lens/internal/engine"
	"github.com/lingua-lens/lens/internal/hardware"
	"github.com/lingua-lens/lens/internal/model"
	"github.com/lingua-lens/lens/internal/router"
	"github.com/lingua-lens/lens/internal/server"
	"github.com/lingua-lens/lens/internal/settings"
	"github.com/lingua-lens/lens/internal/stats"
)

// app is a fully wired host process.
type app struct {
	host     *server.Host
	engine   *engine.Engine
	settings *settings.Store
	logger   *zap.Logger
}

func newRuntime(cfg *config.Config, logger *zap.Logger) *model.OllamaRuntime {
	return model.NewOllamaRuntime(&model.OllamaConfig{
		BaseURL:   cfg.Engine.RuntimeURL,
		KeepAlive: cfg.Engine.KeepAlive,
	}, logger.Named("ollama"))
}

func newProfiler(rt model.Runtime, logger *zap.Logger) *hardware.Profiler {
	ping := func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rt.Ping(ctx) == nil
	}
	return hardware.NewProfiler(
		hardware.WithLogger(logger.Named("hardware")),
		hardware.WithRuntimeProbe(hardware.AnyOf(ping, hardware.BinaryOnPath("ollama"))),
	)
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := settings.Open(cfg.Paths.SettingsDB)
	if err != nil {
		return nil, err
	}

	usage := cost.NewTracker(cfg.Cloud.PricePerMillion)
	rt := newRuntime(cfg, logger)
	eng := engine.New(rt,
		engine.WithLogger(logger.Named("engine")),
		engine.WithLoadTimeout(cfg.LoadTimeout()),
		engine.WithUsage(usage),
	)
	hw := hardware.NewCache(newProfiler(rt, logger))
	hub := engine.NewHub(32)
	st := stats.NewCollector()
	cloud := model.NewCloudClient(&model.CloudConfig{
		Model:     cfg.Cloud.Model,
		Timeout:   cfg.CloudTimeout(),
		MaxTokens: cfg.Cloud.MaxTokens,
	}).WithUsage(usage)

	opts := []router.Option{
		router.WithLogger(logger.Named("router")),
		router.WithStats(st),
		router.WithLocalTimeout(cfg.LocalTimeout()),
		router.WithDedup(cfg.Router.DedupInflight),
	}
	if cfg.Router.LazyInit {
		opts = append(opts, router.WithLazyInit(hw, hub))
	}
	r := router.New(eng, cloud, cache.New(cfg.Router.CacheSize), opts...)

	host := server.NewHost(server.Deps{
		Engine:   eng,
		Router:   r,
		Hardware: hw,
		Hub:      hub,
		Settings: store,
		Stats:    st,
		Usage:    usage,
		Logger:   logger.Named("host"),
	})
	return &app{host: host, engine: eng, settings: store, logger: logger}, nil
}

// Close unloads the model and closes the settings store.
func (a *app) Close(ctx context.Context) error {
	if err := a.engine.Unload(ctx); err != nil {
		a.logger.Warn("failed to unload model", zap.Error(err))
	}
	return a.settings.Close()
}
