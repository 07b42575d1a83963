package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingua-lens/lens/internal/cache"
	"github.com/lingua-lens/lens/internal/engine"
	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/model"
	"github.com/lingua-lens/lens/internal/model/modeltest"
	"github.com/lingua-lens/lens/internal/router"
	"github.com/lingua-lens/lens/internal/server"
	"github.com/lingua-lens/lens/internal/settings"
	"github.com/lingua-lens/lens/pkg/protocol"
)

func startHost(t *testing.T, rt *modeltest.Runtime) (*Client, *server.Host) {
	t.Helper()
	eng := engine.New(rt)
	host := server.NewHost(server.Deps{
		Engine:   eng,
		Router:   router.New(eng, nil, cache.New(0)),
		Hub:      engine.NewHub(8),
		Settings: settings.Static(settings.Default()),
	})
	srv := httptest.NewServer(server.NewHTTPServer("", host, nil).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), host
}

func TestClientTranslate(t *testing.T) {
	c, _ := startHost(t, &modeltest.Runtime{Generate: modeltest.Reply(`{"translation":"Hi"}`)})
	ctx := context.Background()

	_, err := c.Translate(ctx, protocol.TranslateRequest{Text: "hola"})
	require.Error(t, err)
	assert.Equal(t, router.MsgModelNotLoaded, errors.UserMessage(err))

	reply, err := c.Do(ctx, protocol.InitEngine{ModelID: "phi3:mini"})
	require.NoError(t, err)
	assert.Equal(t, protocol.InitResult{Success: true}, reply)

	resp, err := c.Translate(ctx, protocol.TranslateRequest{Text: "hola", RequestID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", resp.Result.Translation)
	assert.Equal(t, protocol.SourceLocal, resp.Source)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.EngineReady)
	assert.Equal(t, "phi3:mini", status.ModelID)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.LocalRoutes)
	assert.NoError(t, c.Health(ctx))
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := srv.Listener.Addr().String()
	srv.Close()

	c := New(addr)
	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNetworkUnavailable))
	assert.Error(t, c.Health(context.Background()))
}

func TestClientProgress(t *testing.T) {
	c, host := startHost(t, &modeltest.Runtime{
		Steps: []model.LoadProgress{{Fraction: 0.3, Text: "Downloading model data..."}},
	})

	p, err := c.SubscribeProgress()
	require.NoError(t, err)
	defer p.Close()
	require.Eventually(t, func() bool { return host.Hub().Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Do(context.Background(), protocol.InitEngine{ModelID: "phi3:mini"})
	require.NoError(t, err)

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, protocol.InitProgress{Progress: 30, Status: "Downloading model data..."}, ev)
	ev, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, protocol.InitProgress{Progress: 100, Status: engine.ReadyStatus}, ev)
}
