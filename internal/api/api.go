// Package api provides HTTP handlers and the main API server for ReplyFlow.
//
// It exposes the inbound message webhook consumed by the messaging gateway
// and the admin surfaces for configuration, actions, takeover, conversation
// history, knowledge documents, and the event log.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/replyflow/replyflow/internal/engine"
	"github.com/replyflow/replyflow/internal/messaging"
	"github.com/replyflow/replyflow/internal/store"
	"github.com/replyflow/replyflow/internal/workflow"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Server wires the HTTP surface to the reply pipeline and its stores.
type Server struct {
	st         store.Store
	engine     *engine.Engine
	workflow   *workflow.Workflow
	dispatcher messaging.Dispatcher
	addr       string
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// NewServer creates a Server over the given collaborators.
func NewServer(st store.Store, eng *engine.Engine, wf *workflow.Workflow, d messaging.Dispatcher, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{st: st, engine: eng, workflow: wf, dispatcher: d, addr: cfg.Addr}
}

// Handler returns the routing mux; exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/message", s.webhookHandler)
	mux.HandleFunc("/config", s.configHandler)
	mux.HandleFunc("/actions", s.actionsHandler)
	mux.HandleFunc("/actions/", s.actionsHandler)
	mux.HandleFunc("/takeover", s.takeoverHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/messages/", s.messagesHandler)
	mux.HandleFunc("/knowledge", s.knowledgeHandler)
	mux.HandleFunc("/knowledge/", s.knowledgeHandler)
	mux.HandleFunc("/send", s.sendHandler)
	mux.HandleFunc("/ai/toggle", s.aiToggleHandler)
	mux.HandleFunc("/logs", s.logsHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ReplyFlow API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("ReplyFlow API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
