// Package session serves the live plan canvas and panorama viewers to browser clients over WebSocket.
package session

import (
	"log/slog"
	"net/http"
	"sync"

	ws "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdf360/planview/internal/catalog"
	"github.com/pdf360/planview/internal/config"
	"github.com/pdf360/planview/internal/dispatcher"
	"github.com/pdf360/planview/internal/logging"
	"github.com/pdf360/planview/internal/markers"
	"github.com/pdf360/planview/internal/plan"
	"github.com/pdf360/planview/internal/telemetry"
	"github.com/pdf360/planview/internal/workspace"
)

// Dependencies holds everything a session needs from the rest of the service.
type Dependencies struct {
	Catalog  *catalog.Catalog
	Markers  *markers.Service
	Renderer plan.PageRenderer

	// Workspace tracks the plan most recently opened by any session. Optional.
	Workspace *workspace.Context
	// Telemetry receives drag outcomes and view syncs. Optional.
	Telemetry *telemetry.Recorder

	Interaction config.InteractionConfig
	Viewer      config.ViewerConfig

	Logger           *slog.Logger
	DispatcherLogger dispatcher.Logger
}

// Server upgrades HTTP requests and runs one Session per connection.
type Server struct {
	deps     Dependencies
	upgrader ws.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a session server
func NewServer(deps Dependencies) *Server {
	if deps.Renderer == nil {
		deps.Renderer = plan.RasterRenderer{}
	}
	if deps.Workspace == nil {
		deps.Workspace = workspace.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DispatcherLogger == nil {
		deps.DispatcherLogger = logging.NewDispatcherLogger(zerolog.Nop())
	}
	return &Server{
		deps: deps,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP upgrades the request and blocks until the session ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	logger := s.deps.Logger.With("session", id)
	sess, err := newSession(id, newConnection(conn, logger), s.deps, logger)
	if err != nil {
		logger.Error("Failed to start session", "error", err)
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	logger.Info("Session opened", "remote", r.RemoteAddr)

	sess.run()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	logger.Info("Session closed")
}

// Len returns the number of live sessions
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every session and waits for their handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.wg.Wait()
	return nil
}
