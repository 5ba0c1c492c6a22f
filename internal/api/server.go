// Package api exposes the admin HTTP interface for the ingestion pipeline.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/romvault/ingestor/internal/config"
	"github.com/romvault/ingestor/internal/crawl"
	"github.com/romvault/ingestor/internal/id/uuid"
	"github.com/romvault/ingestor/internal/index"
	"github.com/romvault/ingestor/internal/pipeline"
	"github.com/romvault/ingestor/internal/scheduler"
	"github.com/romvault/ingestor/internal/store"
)

// Server wires HTTP handlers to the pipeline orchestrator and scheduler.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	scheduler    *scheduler.Scheduler
	store        store.Provider
	index        index.Provider
	logger       *zap.Logger
	cfg          config.Config
}

// NewServer constructs a Server with middleware and the five admin routes
// of spec.md §6.
func NewServer(
	orchestrator *pipeline.Orchestrator,
	sched *scheduler.Scheduler,
	storeProvider store.Provider,
	indexProvider index.Provider,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	s := &Server{
		orchestrator: orchestrator,
		scheduler:    sched,
		store:        storeProvider,
		index:        indexProvider,
		logger:       logger,
		cfg:          cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/pipeline", s.getPipeline)
		r.Post("/pipeline/start", s.startPipeline)
		r.Post("/pipeline/stop", s.stopPipeline)
		r.Get("/schedule", s.getSchedule)
		r.Post("/schedule", s.postSchedule)
		r.Get("/status", s.getStatus)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getPipeline implements GET /admin/pipeline: the observable state of §3.
func (s *Server) getPipeline(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.State().Snapshot())
}

type startPipelineRequest struct {
	Mode string `json:"mode"`
}

// startPipeline implements POST /admin/pipeline/start {mode}: starts a run,
// 409 if already running.
func (s *Server) startPipeline(w http.ResponseWriter, r *http.Request) {
	var req startPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	mode := crawl.Mode(req.Mode)
	if mode != crawl.ModeIncremental && mode != crawl.ModeClean {
		writeError(w, http.StatusBadRequest, `mode must be "incremental" or "clean"`)
		return
	}

	if err := s.orchestrator.Start(context.Background(), mode); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "pipeline already running")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "mode": req.Mode})
}

// stopPipeline implements POST /admin/pipeline/stop: requests cancellation,
// 409 if not running.
func (s *Server) stopPipeline(w http.ResponseWriter, _ *http.Request) {
	if err := s.orchestrator.Stop(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// getSchedule implements GET /admin/schedule.
func (s *Server) getSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Config())
}

// postSchedule implements POST /admin/schedule {enabled, mode, expression}.
func (s *Server) postSchedule(w http.ResponseWriter, r *http.Request) {
	var cfg scheduler.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.scheduler.ApplyConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type statusResponse struct {
	Store statusEntry `json:"store"`
	Index statusEntry `json:"index"`
}

type statusEntry struct {
	Connected bool   `json:"connected"`
	Count     int64  `json:"count"`
	Error     string `json:"error,omitempty"`
}

// getStatus implements GET /admin/status: connectivity and row/document
// counts for the two stores.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}

	if n, err := s.store.Count(r.Context()); err != nil {
		resp.Store = statusEntry{Connected: false, Error: err.Error()}
	} else {
		resp.Store = statusEntry{Connected: true, Count: n}
	}

	if n, err := s.index.Count(r.Context()); err != nil {
		resp.Index = statusEntry{Connected: false, Error: err.Error()}
	} else {
		resp.Index = statusEntry{Connected: true, Count: n}
	}

	writeJSON(w, http.StatusOK, resp)
}

var requestIDGenerator = uuid.NewUUIDGenerator()

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, err := requestIDGenerator.NewID()
		if err != nil {
			reqID = "unknown"
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("admin request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("admin: panic recovered", zap.Any("recovered", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
