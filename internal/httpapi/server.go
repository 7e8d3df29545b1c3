// Package httpapi implements Envoy's external interface (§6): a versioned
// HTTP/JSON surface under /api/v1 plus a server-sent-events stream that fans
// out the bus's per-session events to connected clients.
//
// Grounded on internal/gateway/http_server.go's server lifecycle (ServeMux,
// http.Server with ReadHeaderTimeout, net.Listen + goroutine Serve, graceful
// Shutdown) generalized from that file's single bespoke mux to Go 1.22's
// method+path routing, since the teacher's actual routes (webhooks, a
// websocket control plane, a mounted web UI) don't transfer to this spec's
// chat/sessions/tools/integrations/tasks surface.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/envoyrun/envoy/internal/bus"
	"github.com/envoyrun/envoy/internal/integrations"
	"github.com/envoyrun/envoy/internal/scheduler"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/internal/tools"
	"github.com/envoyrun/envoy/pkg/envoy"
)

// TurnProcessor is the subset of *agent.Loop the API needs to drive a chat
// turn; kept as an interface so tests can substitute a fake.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, userMessage string) (string, []envoy.ConvTurn, error)
}

// Reconciler is the subset of *scheduler.Scheduler needed after a task
// mutation made through the HTTP surface rather than a meta-tool.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// Server wires the store, bus, agent loop, integration manager, and scheduler
// into the /api/v1 HTTP surface.
type Server struct {
	store        *store.Store
	bus          *bus.Bus
	loop         TurnProcessor
	integrations *integrations.Manager
	scheduler    Reconciler
	builtins     []tools.Tool
	logger       *slog.Logger

	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
}

// New returns a ready-to-use Server. sched may be nil in contexts without a
// running scheduler (e.g. tests), in which case task mutations through the
// HTTP surface skip reconciliation.
func New(st *store.Store, b *bus.Bus, loop TurnProcessor, builtins []tools.Tool, integrationsMgr *integrations.Manager, sched Reconciler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:        st,
		bus:          b,
		loop:         loop,
		integrations: integrationsMgr,
		scheduler:    sched,
		builtins:     builtins,
		logger:       logger.With("component", "httpapi"),
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

// Handler returns the server's root http.Handler, primarily for tests that
// want to exercise it with httptest without a real listener.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/v1/events", s.handleEvents)

	s.mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/messages", s.handleSessionMessages)
	s.mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDeleteSession)

	s.mux.HandleFunc("GET /api/v1/tools", s.handleListTools)
	s.mux.HandleFunc("DELETE /api/v1/tools/{name}", s.handleDeleteTool)

	s.mux.HandleFunc("GET /api/v1/integrations", s.handleListIntegrations)
	s.mux.HandleFunc("POST /api/v1/integrations/{name}/config", s.handleSetIntegrationConfig)
	s.mux.HandleFunc("DELETE /api/v1/integrations/{name}", s.handleDeleteIntegration)

	s.mux.HandleFunc("GET /api/v1/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/v1/tasks/{name}/runs", s.handleTaskRuns)
	s.mux.HandleFunc("DELETE /api/v1/tasks/{name}", s.handleDeleteTask)
}

// Start binds addr and begins serving in the background. Mirrors the
// teacher's listen-then-goroutine-Serve shape so bind failures surface
// synchronously to the caller.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", addr)
	return nil
}

// Stop gracefully shuts down the server, waiting at most the context's
// deadline for in-flight requests (including open SSE streams) to drain.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
