// Package server exposes the chain over HTTP: signed transactions are
// submitted with POST /tx, game and block state is readable over REST and
// sealed blocks are streamed to WebSocket subscribers.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/lox/fairjack/internal/chain"
	"github.com/lox/fairjack/internal/game"
)

// Server serves the HTTP API and the block stream
type Server struct {
	chain       *chain.Chain
	engine      *game.Engine
	blocks      <-chan chain.Block
	unsubscribe func()
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	logger      *log.Logger
	mu          sync.RWMutex
	startTime   time.Time
}

// New creates a server in front of the chain and engine.
func New(c *chain.Chain, engine *game.Engine, logger *log.Logger) *Server {
	blocks, unsubscribe := c.Subscribe()
	return &Server{
		chain:       c,
		engine:      engine,
		blocks:      blocks,
		unsubscribe: unsubscribe,
		upgrader: websocket.Upgrader{
			// Block streams are public.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		logger:      logger.WithPrefix("server"),
		startTime:   time.Now(),
	}
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	r.Post("/tx", s.handleSubmit)
	r.Get("/games/{id}", s.handleGame)
	r.Get("/games/{id}/receipts", s.handleReceipts)
	r.Get("/blocks/latest", s.handleLatestBlock)
	r.Get("/blocks/{height}", s.handleBlock)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeConnections()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast forwards sealed blocks to every WebSocket client until ctx is
// cancelled. The server is subscribed from New, so no block sealed after
// that is missed.
func (s *Server) Broadcast(ctx context.Context) error {
	defer s.unsubscribe()

	for {
		select {
		case b, ok := <-s.blocks:
			if !ok {
				return nil
			}
			s.broadcast(b)
		case <-ctx.Done():
			s.closeConnections()
			return nil
		}
	}
}

func (s *Server) broadcast(b chain.Block) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if err := conn.Send(b); err != nil {
			s.logger.Debug("Failed to send block to client", "error", err)
			continue
		}
		count++
	}
	s.logger.Debug("Broadcasted block", "height", b.Height, "recipients", count)
}

// Connections returns the number of connected stream clients.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	s.connections[c] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()
	_ = c.Close()
	s.logger.Info("Client disconnected", "total", total)
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
}

// handleWebSocket upgrades the request and streams blocks to it
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger)
	s.register(client)
	client.Start()

	go func() {
		<-client.Done()
		s.unregister(client)
	}()
}
