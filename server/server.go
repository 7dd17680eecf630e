// Package server implements the Loom HTTP server: the task REST API and
// SSE real-time events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/loomtask/loom/config"
	"github.com/loomtask/loom/engine"
	"github.com/loomtask/loom/events"
	"github.com/loomtask/loom/server/api"
)

// Server is the Loom HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	engine   *engine.Engine
	bus      events.Bus
	handlers *api.Handlers

	// SSE clients
	sseMu      sync.RWMutex
	sseClients map[chan []byte]struct{}

	unsubscribe func()

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     logger,
		sseClients: make(map[chan []byte]struct{}),
		startTime:  time.Now(),
		version:    ver,
	}
}

// SetEngine attaches the task engine to the server.
func (s *Server) SetEngine(e *engine.Engine) {
	s.engine = e
}

// SetBus attaches an event bus; every published task event is relayed to
// connected SSE clients.
func (s *Server) SetBus(bus events.Bus) {
	s.bus = bus
}

// Start registers routes, wires the event relay, and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()
	if s.bus != nil {
		s.unsubscribe = s.bus.Subscribe(func(_ context.Context, ev *events.Event) error {
			s.broadcastEvent(ev)
			return nil
		})
	}

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Engine:  s.engine,
		Bus:     s.bus,
		Logger:  s.logger,
		Version: s.version,
		StartAt: s.startTime.Unix(),
	}
	s.handlers = h

	h.RegisterRoutes(s.mux)
	s.mux.HandleFunc("GET /events", s.handleSSE)
}

// handleSSE implements Server-Sent Events for real-time task updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	ch := make(chan []byte, 64)
	s.sseMu.Lock()
	s.sseClients[ch] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, ch)
		s.sseMu.Unlock()
		close(ch)
	}()

	// Send initial connected event
	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			lines := strings.Split(string(data), "\n")
			for _, line := range lines {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}

// broadcastEvent sends a JSON-encoded event to all connected SSE clients.
func (s *Server) broadcastEvent(ev *events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("broadcast event marshal", slog.Any("err", err))
		return
	}

	s.sseMu.RLock()
	defer s.sseMu.RUnlock()
	for ch := range s.sseClients {
		select {
		case ch <- data:
		default:
			// Client channel full, skip
		}
	}
}
