// Package cost tracks token usage per tier and the estimated cloud spend.
package cost

import (
	"sync"
	"time"

	"github.com/lingua-lens/lens/pkg/protocol"
)

// DefaultPricePerMillion is the cloud baseline used when none is configured.
const DefaultPricePerMillion = 0.50

// Tracker monitors token usage and calculates costs. Counters roll over at
// local midnight. Safe for concurrent use.
type Tracker struct {
	mu              sync.Mutex
	pricePerMillion float64
	now             func() time.Time
	daily           DailyStats
}

// DailyStats tracks usage for a single day.
type DailyStats struct {
	Date          string  `json:"date" yaml:"date"`
	LocalTokens   int     `json:"local_tokens" yaml:"local_tokens"`
	CloudTokens   int     `json:"cloud_tokens" yaml:"cloud_tokens"`
	LocalRequests int     `json:"local_requests" yaml:"local_requests"`
	CloudRequests int     `json:"cloud_requests" yaml:"cloud_requests"`
	CloudCost     float64 `json:"cloud_cost" yaml:"cloud_cost"`
}

// Summary is a snapshot of today's usage with derived figures.
type Summary struct {
	DailyStats `yaml:",inline"`
	LocalRate  float64 `json:"local_rate" yaml:"local_rate"` // percent of tokens served locally
	Savings    float64 `json:"savings" yaml:"savings"`
}

// NewTracker creates a tracker that prices cloud tokens at pricePerMillion
// dollars per million. Non-positive prices use DefaultPricePerMillion.
func NewTracker(pricePerMillion float64) *Tracker {
	if pricePerMillion <= 0 {
		pricePerMillion = DefaultPricePerMillion
	}
	t := &Tracker{
		pricePerMillion: pricePerMillion,
		now:             time.Now,
	}
	t.daily.Date = t.today()
	return t
}

func (t *Tracker) today() string {
	return t.now().Format("2006-01-02")
}

// roll resets the counters when the day changed. Caller holds mu.
func (t *Tracker) roll() {
	if d := t.today(); d != t.daily.Date {
		t.daily = DailyStats{Date: d}
	}
}

// Record records tokens spent by one inference on source. Cache hits cost
// nothing and are ignored.
func (t *Tracker) Record(source protocol.Source, tokens int) {
	if tokens < 0 {
		tokens = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	switch source {
	case protocol.SourceLocal:
		t.daily.LocalTokens += tokens
		t.daily.LocalRequests++
	case protocol.SourceCloud:
		t.daily.CloudTokens += tokens
		t.daily.CloudRequests++
		t.daily.CloudCost += float64(tokens) / 1_000_000 * t.pricePerMillion
	}
}

// Summary returns today's usage.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()

	s := Summary{DailyStats: t.daily}
	total := s.LocalTokens + s.CloudTokens
	if total > 0 {
		s.LocalRate = float64(s.LocalTokens) / float64(total) * 100
	}
	s.Savings = float64(s.LocalTokens) / 1_000_000 * t.pricePerMillion
	return s
}
