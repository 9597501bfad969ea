package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pogoda1/parsik/internal/stats"
	"github.com/pogoda1/parsik/internal/syncq"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type StatsSource interface {
	Snapshot() stats.Snapshot
}

type QueueSource interface {
	Pending() ([]syncq.Item, error)
}

type LogSource interface {
	Recent(ctx context.Context, limit int) ([]syncq.AuditEntry, error)
}

// Deps wires the server to the running worker. Log, Trigger and Metrics may
// be nil; the matching endpoints then report the feature as unavailable.
type Deps struct {
	Stats    StatsSource
	Queue    QueueSource
	Log      LogSource
	Trigger  chan<- struct{}
	Metrics  prometheus.Gatherer
	APIToken string
	Logger   *slog.Logger
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
	logger *slog.Logger
}

func NewServer(port int, d Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: router,
		port:   port,
		deps:   d,
		logger: logger,
	}

	router.Get("/health", s.health)
	if d.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(d.APIToken))
		r.Get("/status", s.status)
		r.Get("/queue", s.queue)
		r.Get("/log", s.processingLog)
		r.Post("/sync", s.triggerSync)
	})

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown API server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "parsik",
		"stats":   s.deps.Stats.Snapshot(),
	})
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Queue.Pending()
	if err != nil {
		s.logger.Error("read pending list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read pending list")
		return
	}
	if items == nil {
		items = []syncq.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}

func (s *Server) processingLog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Log == nil {
		writeError(w, http.StatusServiceUnavailable, "processing log store not configured")
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	entries, err := s.deps.Log.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("query processing log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query processing log")
		return
	}
	if entries == nil {
		entries = []syncq.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// triggerSync never blocks: when a sync is already pending the request is
// folded into it.
func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "sync worker not running")
		return
	}
	select {
	case s.deps.Trigger <- struct{}{}:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "already_pending"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
