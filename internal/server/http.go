package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/lingua-lens/lens/pkg/protocol"
)

const maxRequestBytes = 1 << 20

// HTTPServer exposes a Host over HTTP:
//
//	POST /v1/rpc       one protocol request in, one reply out
//	GET  /v1/progress  websocket stream of INIT_PROGRESS messages
//	GET  /v1/stats     statistics snapshot
//	GET  /healthz      liveness
type HTTPServer struct {
	addr   string
	host   *Host
	logger *zap.Logger

	listener net.Listener
	server   *http.Server
}

// NewHTTPServer creates a server that will listen on addr.
func NewHTTPServer(addr string, host *Host, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPServer{addr: addr, host: host, logger: logger}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routing mux.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rpc", s.handleRPC)
	mux.Handle("GET /v1/progress", websocket.Server{Handler: s.streamProgress})
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start listens and serves in the background until Shutdown.
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	s.logger.Info("http server listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight RPCs. Progress
// streams are ended by closing the host's hub.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.host.Hub().Close()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, protocol.Error{Error: "failed to read request"})
		return
	}
	req, err := protocol.DecodeRequest(body)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, protocol.Error{Error: err.Error()})
		return
	}

	reply := s.host.Handle(r.Context(), req)
	s.writeMessage(w, http.StatusOK, reply)
}

func (s *HTTPServer) streamProgress(ws *websocket.Conn) {
	events, cancel := s.host.Hub().Subscribe()
	defer cancel()

	// Drain client frames so a close from the other side ends the stream.
	go func() {
		_, _ = io.Copy(io.Discard, ws)
		cancel()
	}()

	for p := range events {
		data, err := protocol.Encode(ProgressMessage(p))
		if err != nil {
			s.logger.Error("failed to encode progress", zap.Error(err))
			continue
		}
		if err := websocket.Message.Send(ws, string(data)); err != nil {
			s.logger.Debug("progress subscriber gone", zap.Error(err))
			return
		}
	}
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.host.Stats())
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) writeMessage(w http.ResponseWriter, status int, m protocol.Message) {
	data, err := protocol.Encode(m)
	if err != nil {
		s.logger.Error("failed to encode reply", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}
