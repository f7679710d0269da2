// Package api serves the operator HTTP endpoints: sync trigger and status,
// listener state, transaction stats, health and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dexIngest/internal/indexer"
	"dexIngest/internal/model"
	"dexIngest/internal/syncer"
)

// SyncRunner starts background sync passes.
type SyncRunner interface {
	Start(ctx context.Context, mode syncer.Mode) (string, error)
	Running() bool
	LastSummary() (syncer.Summary, bool)
}

// StatusStore lists persisted sync progress.
type StatusStore interface {
	ListSyncStatus(ctx context.Context) ([]model.SyncStatus, error)
	ListCursors(ctx context.Context) ([]model.SyncCursor, error)
}

// StatsSource counts derived transaction records.
type StatsSource interface {
	Stats(ctx context.Context) (model.TxStats, error)
}

// ListenerStates reports the live state of every chain listener.
type ListenerStates interface {
	States() map[string]indexer.State
}

// Deps are the components behind the endpoints. Listener may be nil.
type Deps struct {
	Sync     SyncRunner
	Status   StatusStore
	Stats    StatsSource
	Listener ListenerStates
	Gatherer prometheus.Gatherer
}

// Server is the operator HTTP server.
type Server struct {
	ctx    context.Context
	deps   Deps
	logger *zap.Logger
	server *http.Server
}

// NewServer builds the server. Passes triggered over HTTP run under ctx,
// not the request context.
func NewServer(ctx context.Context, addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{ctx: ctx, deps: deps, logger: logger}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting api server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// registered on the root router so a method mismatch yields 405
	router.HandleFunc("/api/sync/full", s.triggerFullSync).Methods(http.MethodPost)
	router.HandleFunc("/api/sync/status", s.syncStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/sync/cursors", s.syncCursors).Methods(http.MethodGet)
	router.HandleFunc("/api/listener/chains", s.listenerChains).Methods(http.MethodGet)
	router.HandleFunc("/api/transactions/stats", s.transactionStats).Methods(http.MethodGet)

	return router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
