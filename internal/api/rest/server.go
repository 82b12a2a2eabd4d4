package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/config"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
)

// HealthChecker reports readiness of a backing dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the engine's HTTP front. It owns only the listener; the
// background loops are started and stopped by the caller.
type Server struct {
	cfg        *config.ServerConfig
	httpServer *http.Server
	handler    *Handler
	hub        *events.Hub
	health     HealthChecker
	logger     *zap.Logger
}

func NewServer(cfg *config.ServerConfig, handler *Handler, hub *events.Hub, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		hub:     hub,
		health:  health,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        s.routes(),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /health", s.handleReadiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /exercises/{id}/injects", s.handler.handlePublishImmediate)
	v1.HandleFunc("POST /exercises/{id}/injects/{definitionID}/publish", s.handler.handlePublish)
	v1.HandleFunc("POST /exercises/{id}/injects/{definitionID}/cancel", s.handler.handleCancel)
	v1.HandleFunc("GET /exercises/{id}/injects/published", s.handler.handleListPublished)
	v1.HandleFunc("GET /exercises/{id}/injects/cancelled", s.handler.handleListCancelled)
	v1.HandleFunc("GET /exercises/{id}/escalation/factors", s.handler.handleListFactors)
	v1.HandleFunc("GET /exercises/{id}/escalation/factors/latest", s.handler.handleLatestFactors)
	v1.HandleFunc("GET /exercises/{id}/escalation/pathways", s.handler.handleListPathways)
	v1.HandleFunc("GET /exercises/{id}/escalation/matrix", s.handler.handleListMatrix)
	v1.Handle("GET /exercises/{id}/ws", s.handler.handleWebSocket(s.hub))

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", s.instrument(v1)))
	return mux
}

// instrument records count and latency per route pattern. The pattern comes
// from the mux match, not the raw path, so exercise IDs never fan out into
// metric labels.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		mux.ServeHTTP(w, r)
		if s.handler.registry == nil {
			return
		}
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		s.handler.registry.RecordRequest(r.Context(), r.Method, pattern, time.Since(started))
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Start blocks until the listener fails or the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes the WebSocket hub.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if s.hub != nil {
		s.hub.Shutdown()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
