// Package server exposes the studio engine over a JSON HTTP API and streams
// training progress to WebSocket clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mlstudio/internal/engine"
	"mlstudio/internal/ml"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// streamWriteWait bounds a single WebSocket write.
const streamWriteWait = 5 * time.Second

// Server serves the studio API.
type Server struct {
	engine      *engine.Engine
	server      *http.Server
	router      *mux.Router
	upgrader    websocket.Upgrader
	clients     map[*websocket.Conn]bool
	clientsMu   sync.Mutex
	stopChannel chan struct{}
	stopOnce    sync.Once
	isRunning   bool
	mu          sync.Mutex
}

// New creates a server for eng listening on port once started.
func New(eng *engine.Engine, port int) *Server {
	s := &Server{
		engine:      eng,
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:     make(map[*websocket.Conn]bool),
		stopChannel: make(chan struct{}),
	}
	s.router = s.routes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	go func() {
		log.Info().Str("address", s.server.Addr).Msg("Starting API server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("API server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Stop closes every stream and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopChannel) })

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if !s.isRunning {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server")
		return err
	}
	s.isRunning = false
	log.Info().Msg("API server stopped")
	return nil
}

// handleStream sends the current history, then every later step, until the
// client disconnects or the server stops. Each connection holds its own
// subscription so a step is delivered exactly once.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	history, steps, unsubscribe := s.engine.Watch()
	defer unsubscribe()

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, step := range history {
		if err := writeStep(conn, step); err != nil {
			return
		}
	}

	for {
		select {
		case step, ok := <-steps:
			if !ok {
				return
			}
			if err := writeStep(conn, step); err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to send training step to WebSocket client")
				return
			}
		case <-closed:
			return
		case <-s.stopChannel:
			return
		}
	}
}

func writeStep(conn *websocket.Conn, step ml.TrainingStep) error {
	data, err := json.Marshal(step)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
