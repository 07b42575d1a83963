// Package client talks to a running lens host over HTTP.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/websocket"

	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/stats"
	"github.com/lingua-lens/lens/pkg/protocol"
)

// Client sends protocol requests to a host's HTTP transport.
type Client struct {
	baseURL string
	http    *resty.Client
}

// New creates a client for the host at addr ("127.0.0.1:7411" or a full
// http:// URL).
func New(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	base = strings.TrimRight(base, "/")
	return &Client{
		baseURL: base,
		http: resty.New().
			SetBaseURL(base).
			SetHeader("Content-Type", "application/json"),
	}
}

// Do sends one request and decodes the reply. A protocol Error reply is
// returned as a reply, not as a Go error.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Reply, error) {
	body, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/v1/rpc")
	if err != nil {
		return nil, errors.NewBuilder(errors.CodeNetworkUnavailable, "lens host unreachable at "+c.baseURL).
			Temporary().
			Wrap(err).
			WithSuggestion("Start it with `lens serve`").
			Build()
	}
	reply, err := protocol.DecodeReply(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("host replied %s: %w", resp.Status(), err)
	}
	return reply, nil
}

// Translate is Do for a TranslateRequest, surfacing Error replies as errors.
func (c *Client) Translate(ctx context.Context, req protocol.TranslateRequest) (protocol.TranslateResponse, error) {
	reply, err := c.Do(ctx, req)
	if err != nil {
		return protocol.TranslateResponse{}, err
	}
	switch r := reply.(type) {
	case protocol.TranslateResponse:
		return r, nil
	case protocol.Error:
		return protocol.TranslateResponse{}, errors.User(errors.CodeTranslationFailed, r.Error)
	default:
		return protocol.TranslateResponse{}, fmt.Errorf("unexpected reply %s", reply.Type())
	}
}

// Status fetches engine and hardware status.
func (c *Client) Status(ctx context.Context) (protocol.StatusResponse, error) {
	reply, err := c.Do(ctx, protocol.GetStatus{})
	if err != nil {
		return protocol.StatusResponse{}, err
	}
	status, ok := reply.(protocol.StatusResponse)
	if !ok {
		return protocol.StatusResponse{}, fmt.Errorf("unexpected reply %s", reply.Type())
	}
	return status, nil
}

// Stats fetches the host's statistics.
func (c *Client) Stats(ctx context.Context) (*stats.Stats, error) {
	var out stats.Stats
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/v1/stats")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "lens host unreachable at "+c.baseURL, errors.CategoryTemporary)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("stats: %s", resp.Status())
	}
	return &out, nil
}

// Health reports whether the host answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := c.http.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("healthz: %s", resp.Status())
	}
	return nil
}

// Progress is an open subscription to load progress.
type Progress struct {
	ws *websocket.Conn
}

// SubscribeProgress opens the host's progress stream.
func (c *Client) SubscribeProgress() (*Progress, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	origin := u.String()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/v1/progress"

	ws, err := websocket.Dial(u.String(), "", origin)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetworkUnavailable, "failed to open progress stream", errors.CategoryTemporary)
	}
	return &Progress{ws: ws}, nil
}

// Next blocks for the next progress event.
func (p *Progress) Next() (protocol.InitProgress, error) {
	for {
		var raw string
		if err := websocket.Message.Receive(p.ws, &raw); err != nil {
			return protocol.InitProgress{}, err
		}
		reply, err := protocol.DecodeReply([]byte(raw))
		if err != nil {
			return protocol.InitProgress{}, err
		}
		if ev, ok := reply.(protocol.InitProgress); ok {
			return ev, nil
		}
	}
}

// Close ends the subscription.
func (p *Progress) Close() error {
	return p.ws.Close()
}
