// Package stats provides routing and process statistics for the host.
package stats

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/lingua-lens/lens/internal/cost"
	"github.com/lingua-lens/lens/pkg/protocol"
)

// Collector collects and tracks routing statistics. Safe for concurrent use.
type Collector struct {
	startTime time.Time

	cacheHits     atomic.Int64
	localRoutes   atomic.Int64
	cloudRoutes   atomic.Int64
	localFailures atomic.Int64
	cloudFailures atomic.Int64
	exhaustions   atomic.Int64
	initAttempts  atomic.Int64
	initFailures  atomic.Int64
	totalDuration atomic.Int64 // nanoseconds, successful routes only
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// Stats represents host statistics at a point in time.
type Stats struct {
	// Process
	MemoryStats MemoryStats `json:"memory" yaml:"memory"`
	Goroutines  int         `json:"goroutines" yaml:"goroutines"`
	Uptime      string      `json:"uptime" yaml:"uptime"`

	// Routing
	Routes        int64   `json:"routes" yaml:"routes"`
	CacheHits     int64   `json:"cache_hits" yaml:"cache_hits"`
	LocalRoutes   int64   `json:"local_routes" yaml:"local_routes"`
	CloudRoutes   int64   `json:"cloud_routes" yaml:"cloud_routes"`
	LocalFailures int64   `json:"local_failures" yaml:"local_failures"`
	CloudFailures int64   `json:"cloud_failures" yaml:"cloud_failures"`
	Exhaustions   int64   `json:"exhaustions" yaml:"exhaustions"`
	AvgLatencyMs  float64 `json:"avg_latency_ms" yaml:"avg_latency_ms"`

	// Engine
	InitAttempts int64 `json:"init_attempts" yaml:"init_attempts"`
	InitFailures int64 `json:"init_failures" yaml:"init_failures"`

	// Cache
	CacheEntries int `json:"cache_entries" yaml:"cache_entries"`

	// Tokens, when usage is tracked
	Usage *cost.Summary `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	HeapAllocMB float64 `json:"heap_alloc_mb" yaml:"heap_alloc_mb"`
	HeapSysMB   float64 `json:"heap_sys_mb" yaml:"heap_sys_mb"`
	NumGC       uint32  `json:"num_gc" yaml:"num_gc"`
}

// Collect returns current statistics. cacheEntries is supplied by the
// caller since the collector does not own the cache.
func (c *Collector) Collect(cacheEntries int) *Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	hits, local, cloud := c.cacheHits.Load(), c.localRoutes.Load(), c.cloudRoutes.Load()
	routes := hits + local + cloud
	avgLatency := float64(0)
	if routes > 0 {
		avgLatency = float64(c.totalDuration.Load()) / float64(routes) / 1e6 // nanos to millis
	}

	return &Stats{
		MemoryStats: MemoryStats{
			HeapAllocMB: bytesToMB(int64(m.HeapAlloc)),
			HeapSysMB:   bytesToMB(int64(m.HeapSys)),
			NumGC:       m.NumGC,
		},
		Goroutines:    runtime.NumGoroutine(),
		Uptime:        time.Since(c.startTime).Round(time.Second).String(),
		Routes:        routes,
		CacheHits:     hits,
		LocalRoutes:   local,
		CloudRoutes:   cloud,
		LocalFailures: c.localFailures.Load(),
		CloudFailures: c.cloudFailures.Load(),
		Exhaustions:   c.exhaustions.Load(),
		AvgLatencyMs:  avgLatency,
		InitAttempts:  c.initAttempts.Load(),
		InitFailures:  c.initFailures.Load(),
		CacheEntries:  cacheEntries,
	}
}

// RecordRoute records a successful route served by source.
func (c *Collector) RecordRoute(source protocol.Source, duration time.Duration) {
	switch source {
	case protocol.SourceCache:
		c.cacheHits.Add(1)
	case protocol.SourceLocal:
		c.localRoutes.Add(1)
	case protocol.SourceCloud:
		c.cloudRoutes.Add(1)
	default:
		return
	}
	c.totalDuration.Add(duration.Nanoseconds())
}

// RecordTierFailure records a failed attempt on the local or cloud tier.
func (c *Collector) RecordTierFailure(source protocol.Source) {
	switch source {
	case protocol.SourceLocal:
		c.localFailures.Add(1)
	case protocol.SourceCloud:
		c.cloudFailures.Add(1)
	}
}

// RecordExhaustion records a route where every tier failed.
func (c *Collector) RecordExhaustion() {
	c.exhaustions.Add(1)
}

// RecordInit records an engine load attempt.
func (c *Collector) RecordInit(err error) {
	c.initAttempts.Add(1)
	if err != nil {
		c.initFailures.Add(1)
	}
}

// StartTime returns when the collector started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// bytesToMB converts bytes to megabytes.
func bytesToMB(b int64) float64 {
	return float64(b) / 1024 / 1024
}
