// Package server exposes the anchor index over HTTP and pushes change
// notifications to websocket clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/engine"
	"github.com/conneroisu/anchorage/internal/links"
	"github.com/conneroisu/anchorage/internal/logging"
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan Message
	server *Server
}

// Server serves the anchor index with live change notifications.
type Server struct {
	config       *config.Config
	engine       *engine.Engine
	resolver     *links.Resolver
	logger       logging.Logger
	httpServer   *http.Server
	serverMutex  sync.RWMutex
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan Message
	register     chan *Client
	unregister   chan *websocket.Conn
	shutdownOnce sync.Once
	done         chan struct{}
}

// Message is sent to websocket clients when anchors change.
type Message struct {
	Type      string    `json:"type"`
	URI       string    `json:"uri,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a server over eng. The configuration supplies the listen
// address and the workspace root used for link resolution.
func New(cfg *config.Config, eng *engine.Engine, logger logging.Logger) *Server {
	return &Server{
		config:     cfg,
		engine:     eng,
		resolver:   links.NewResolver(cfg.Workspace.Root, eng),
		logger:     logger.WithComponent("server"),
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan Message, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// Start runs the notification hub and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.Run(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "serving anchors", "addr", s.Addr())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Run forwards engine events to websocket clients until ctx is done or the
// server shuts down.
func (s *Server) Run(ctx context.Context) {
	events := s.engine.Subscribe()
	defer s.engine.Unsubscribe(events)

	go s.runWebSocketHub(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.broadcastMessage(Message{
				Type:      event.Type.String(),
				URI:       string(event.URI),
				Timestamp: time.Now(),
			})
		}
	}
}

func (s *Server) broadcastMessage(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.done:
	}
}

// Handler returns the HTTP routes wrapped in the request logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/anchors", s.handleAnchors)
	mux.HandleFunc("/api/files", s.handleFiles)
	mux.HandleFunc("/api/file", s.handleFile)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/epics", s.handleEpics)
	mux.HandleFunc("/api/goto", s.handleGoto)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/links", s.handleLinks)
	mux.HandleFunc("/api/export", s.handleExport)

	return s.addMiddleware(mux)
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// Shutdown closes websocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down server")
		close(s.done)

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}
