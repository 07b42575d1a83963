package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lingua-lens/lens/internal/cache"
	"github.com/lingua-lens/lens/internal/engine"
	lenserrors "github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/model"
	"github.com/lingua-lens/lens/internal/model/modeltest"
	"github.com/lingua-lens/lens/internal/settings"
	"github.com/lingua-lens/lens/internal/stats"
	"github.com/lingua-lens/lens/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCloud struct {
	mu     sync.Mutex
	calls  int
	last   model.Endpoint
	result protocol.TranslationResult
	err    error
}

func (f *fakeCloud) Translate(_ context.Context, _, _, _ string, ep model.Endpoint) (protocol.TranslationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = ep
	return f.result, f.err
}

func (f *fakeCloud) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedHardware protocol.HardwareProfile

func (h fixedHardware) Get(context.Context) protocol.HardwareProfile {
	return protocol.HardwareProfile(h)
}

func readyEngine(t *testing.T, rt *modeltest.Runtime) *engine.Engine {
	t.Helper()
	e := engine.New(rt)
	_, err := e.Init(context.Background(), "phi3:mini", nil)
	require.NoError(t, err)
	return e
}

func cloudSettings() settings.Settings {
	s := settings.Default()
	s.UseCloudFallback = true
	s.CloudAPIURL = "https://cloud.example/v1"
	s.CloudAPIKey = "sk-test"
	return s
}

func TestRouteLocalThenCache(t *testing.T) {
	rt := &modeltest.Runtime{Generate: modeltest.Reply(`{"translation":"Hello"}`)}
	st := stats.NewCollector()
	r := New(readyEngine(t, rt), nil, cache.New(0), WithStats(st))
	req := Request{Text: " Hola ", SourceLang: "Spanish", TargetLang: "English"}

	first, err := r.Route(context.Background(), req, settings.Default())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceLocal, first.Source)
	assert.Equal(t, "Hello", first.Result.Translation)

	second, err := r.Route(context.Background(), Request{Text: "hola", SourceLang: "Spanish", TargetLang: "English"}, settings.Default())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCache, second.Source)
	assert.Equal(t, first.Result, second.Result)

	assert.Len(t, rt.Requests(), 1)
	s := st.Collect(r.Cache().Len())
	assert.EqualValues(t, 1, s.LocalRoutes)
	assert.EqualValues(t, 1, s.CacheHits)
}

func TestRouteCacheHitSkipsEveryTier(t *testing.T) {
	rt := &modeltest.Runtime{}
	cloud := &fakeCloud{}
	c := cache.New(0)
	c.Set(cache.Key("hello", "auto", "English"), protocol.TranslationResult{Translation: "cached"})
	r := New(engine.New(rt), cloud, c)

	out, err := r.Route(context.Background(), Request{Text: "Hello", SourceLang: "auto", TargetLang: "English"}, cloudSettings())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCache, out.Source)
	assert.Equal(t, "cached", out.Result.Translation)
	assert.Zero(t, cloud.Calls())
	assert.Empty(t, rt.Loads())
}

func TestRouteCloudWhenEngineEmpty(t *testing.T) {
	cloud := &fakeCloud{result: protocol.TranslationResult{Translation: "Thanks"}}
	r := New(engine.New(&modeltest.Runtime{}), cloud, cache.New(0))

	out, err := r.Route(context.Background(), Request{Text: "Gracias", SourceLang: "auto", TargetLang: "English"}, cloudSettings())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCloud, out.Source)
	assert.Equal(t, model.Endpoint{URL: "https://cloud.example/v1", APIKey: "sk-test"}, cloud.last)

	out, err = r.Route(context.Background(), Request{Text: "gracias", SourceLang: "auto", TargetLang: "English"}, cloudSettings())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCache, out.Source)
	assert.Equal(t, 1, cloud.Calls())
}

func TestRouteExhaustedWithoutModel(t *testing.T) {
	cloud := &fakeCloud{}
	r := New(engine.New(&modeltest.Runtime{}), cloud, cache.New(0))

	_, err := r.Route(context.Background(), Request{Text: "x", SourceLang: "auto", TargetLang: "English"}, settings.Default())
	require.Error(t, err)
	assert.Equal(t, lenserrors.CodeModelNotLoaded, lenserrors.CodeOf(err))
	assert.Equal(t, MsgModelNotLoaded, lenserrors.UserMessage(err))
	assert.Zero(t, cloud.Calls(), "cloud tier is off by default")
}

func TestRouteExhaustedWithReadyEngine(t *testing.T) {
	rt := &modeltest.Runtime{Generate: func(context.Context, string, *model.Request) (*model.Response, error) {
		return nil, errors.New("runtime crashed")
	}}
	cloud := &fakeCloud{err: errors.New("503")}
	core, logs := observer.New(zapcore.WarnLevel)
	st := stats.NewCollector()
	r := New(readyEngine(t, rt), cloud, cache.New(0), WithLogger(zap.New(core)), WithStats(st))

	_, err := r.Route(context.Background(), Request{Text: "x", SourceLang: "Spanish", TargetLang: "English"}, cloudSettings())
	require.Error(t, err)
	assert.Equal(t, lenserrors.CodeTranslationFailed, lenserrors.CodeOf(err))
	assert.Equal(t, MsgTranslationFailed, lenserrors.UserMessage(err))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "local", entries[0].ContextMap()["tier"])
	assert.Equal(t, "Spanish", entries[0].ContextMap()["source_lang"])
	assert.Equal(t, "cloud", entries[1].ContextMap()["tier"])

	s := st.Collect(0)
	assert.EqualValues(t, 1, s.LocalFailures)
	assert.EqualValues(t, 1, s.CloudFailures)
	assert.EqualValues(t, 1, s.Exhaustions)
}

func TestRouteLocalTimeoutFallsBackToCloud(t *testing.T) {
	rt := &modeltest.Runtime{Generate: func(ctx context.Context, _ string, _ *model.Request) (*model.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	cloud := &fakeCloud{result: protocol.TranslationResult{Translation: "from cloud"}}
	r := New(readyEngine(t, rt), cloud, cache.New(0), WithLocalTimeout(20*time.Millisecond))

	start := time.Now()
	out, err := r.Route(context.Background(), Request{Text: "x", SourceLang: "auto", TargetLang: "English"}, cloudSettings())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCloud, out.Source)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRouteCloudSkippedWithoutURL(t *testing.T) {
	cloud := &fakeCloud{}
	s := cloudSettings()
	s.CloudAPIURL = ""
	r := New(engine.New(&modeltest.Runtime{}), cloud, cache.New(0))

	_, err := r.Route(context.Background(), Request{Text: "x", SourceLang: "auto", TargetLang: "English"}, s)
	require.Error(t, err)
	assert.Zero(t, cloud.Calls())
}

func TestRouteLazyInit(t *testing.T) {
	rt := &modeltest.Runtime{
		Steps:    []model.LoadProgress{{Fraction: 0.5, Text: "Downloading model data..."}},
		Generate: modeltest.Reply(`{"translation":"Hi"}`),
	}
	eng := engine.New(rt)
	hub := engine.NewHub(8)
	events, cancel := hub.Subscribe()
	defer cancel()

	hw := fixedHardware{CanRunLocal: true, RecommendedModel: "qwen2:1.5b"}
	r := New(eng, nil, cache.New(0), WithLazyInit(hw, hub))

	out, err := r.Route(context.Background(), Request{Text: "Hola", SourceLang: "auto", TargetLang: "English"}, settings.Default())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceLocal, out.Source)
	assert.Equal(t, []string{"qwen2:1.5b"}, rt.Loads())

	assert.Equal(t, engine.Progress{Percent: 50, Status: "Downloading model data..."}, <-events)
	assert.Equal(t, engine.Progress{Percent: 100, Status: engine.ReadyStatus}, <-events)
}

func TestRouteLazyInitUsesSelectedModelWhenHardwareCannotRunLocal(t *testing.T) {
	rt := &modeltest.Runtime{LoadErr: errors.New("no runtime")}
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(engine.New(rt), nil, cache.New(0),
		WithLazyInit(fixedHardware{CanRunLocal: false, RecommendedModel: "tinyllama:1.1b"}, nil),
		WithLogger(zap.New(core)))

	s := settings.Default()
	s.SelectedModel = "qwen2:1.5b"
	_, err := r.Route(context.Background(), Request{Text: "x", SourceLang: "auto", TargetLang: "English"}, s)
	require.Error(t, err)
	assert.Equal(t, lenserrors.CodeModelNotLoaded, lenserrors.CodeOf(err))
	assert.Equal(t, []string{"qwen2:1.5b"}, rt.Loads())
	assert.Equal(t, 1, logs.FilterMessage("lazy model load failed").Len())
}

func TestRouteDedupsConcurrentMisses(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	rt := &modeltest.Runtime{Generate: func(ctx context.Context, id string, _ *model.Request) (*model.Response, error) {
		calls.Add(1)
		<-gate
		return &model.Response{Text: `{"translation":"Hello"}`, Model: id}, nil
	}}
	r := New(readyEngine(t, rt), nil, cache.New(0), WithDedup(true))

	const n = 8
	var wg sync.WaitGroup
	results := make([]Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Route(context.Background(), Request{Text: "Hola", SourceLang: "auto", TargetLang: "English"}, settings.Default())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Hello", results[i].Result.Translation)
	}
}

func TestRouteDedupSurvivesFirstCallerCancel(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	rt := &modeltest.Runtime{Generate: func(ctx context.Context, id string, _ *model.Request) (*model.Response, error) {
		calls.Add(1)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &model.Response{Text: `{"translation":"Hello"}`, Model: id}, nil
	}}
	r := New(readyEngine(t, rt), nil, cache.New(0), WithDedup(true))
	req := Request{Text: "Hola", SourceLang: "auto", TargetLang: "English"}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := r.Route(ctxA, req, settings.Default())
		errA <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	type result struct {
		out Outcome
		err error
	}
	resB := make(chan result, 1)
	go func() {
		out, err := r.Route(context.Background(), req, settings.Default())
		resB <- result{out, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	err := <-errA
	require.Error(t, err)
	assert.Equal(t, lenserrors.CodeRequestCancelled, lenserrors.CodeOf(err))

	close(gate)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, protocol.SourceLocal, b.out.Source)
	assert.Equal(t, "Hello", b.out.Result.Translation)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRouteLazyInitOutlivesRequester(t *testing.T) {
	gate := make(chan struct{})
	rt := &modeltest.Runtime{
		Gate:     gate,
		Started:  make(chan string, 1),
		Generate: modeltest.Reply(`{"translation":"Hi"}`),
	}
	eng := engine.New(rt)
	st := stats.NewCollector()
	r := New(eng, nil, cache.New(0),
		WithLazyInit(fixedHardware{CanRunLocal: true, RecommendedModel: "phi3:mini"}, nil),
		WithStats(st))
	req := Request{Text: "Hola", SourceLang: "auto", TargetLang: "English"}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Route(ctx, req, settings.Default())
		errCh <- err
	}()
	assert.Equal(t, "phi3:mini", <-rt.Started)

	cancel()
	err := <-errCh
	require.Error(t, err)
	assert.Equal(t, lenserrors.CodeRequestCancelled, lenserrors.CodeOf(err))
	assert.Equal(t, engine.StateLoading, eng.State())
	assert.Zero(t, st.Collect(0).Exhaustions)

	close(gate)
	require.Eventually(t, eng.Ready, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"phi3:mini"}, rt.Loads())

	out, err := r.Route(context.Background(), req, settings.Default())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceLocal, out.Source)
	assert.Len(t, rt.Loads(), 1)
}

func TestRouteDuringLoadSkipsInit(t *testing.T) {
	gate := make(chan struct{})
	rt := &modeltest.Runtime{
		Gate:     gate,
		Started:  make(chan string, 1),
		Generate: modeltest.Reply(`{"translation":"Hi"}`),
	}
	eng := engine.New(rt)
	cloud := &fakeCloud{result: protocol.TranslationResult{Translation: "Goodbye"}}
	r := New(eng, cloud, cache.New(0),
		WithLazyInit(fixedHardware{CanRunLocal: true, RecommendedModel: "phi3:mini"}, nil))

	type result struct {
		out Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := r.Route(context.Background(), Request{Text: "Hola", SourceLang: "auto", TargetLang: "English"}, cloudSettings())
		first <- result{out, err}
	}()
	<-rt.Started

	start := time.Now()
	out, err := r.Route(context.Background(), Request{Text: "Adiós", SourceLang: "auto", TargetLang: "English"}, cloudSettings())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCloud, out.Source)
	assert.Equal(t, "Goodbye", out.Result.Translation)

	_, err = r.Route(context.Background(), Request{Text: "Gracias", SourceLang: "auto", TargetLang: "English"}, settings.Default())
	require.Error(t, err)
	assert.Equal(t, lenserrors.CodeModelNotLoaded, lenserrors.CodeOf(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, rt.Loads(), 1)

	close(gate)
	f := <-first
	require.NoError(t, f.err)
	assert.Equal(t, protocol.SourceLocal, f.out.Source)
	assert.Len(t, rt.Loads(), 1)
}
