// Package api exposes the inbound HTTP surface: the translate endpoint, a
// run-introspection endpoint, and a health check.
//
// Error policy: internal failure causes are logged in full and never leaked
// to callers. Every pipeline failure maps to the same opaque 500 response.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/psdglot/psdglot/internal/pipeline"
	"github.com/psdglot/psdglot/internal/state"
)

const defaultTargetLang = "EN"

// Runner executes one translation run.
type Runner interface {
	Run(ctx context.Context, document []byte, targetLang string) (*pipeline.Result, error)
}

// RunReader reads run records. Satisfied by *state.Store.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*state.Run, error)
}

// Config holds API server configuration.
type Config struct {
	Listen         string
	MaxUploadBytes int64
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	runner    Runner
	runs      RunReader
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, runner Runner, runs RunReader, logger *slog.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 64 * 1024 * 1024
	}
	return &Server{
		config:    config,
		runner:    runner,
		runs:      runs,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		// A run holds the request open through two polling loops.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/translate", s.handleTranslate)
	r.Get("/v1/runs/{runID}", s.handleGetRun)

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleTranslate accepts a multipart document upload and runs the
// translation pipeline synchronously.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "no document supplied")
		return
	}

	file, _, err := r.FormFile("document")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no document supplied")
		return
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read uploaded document", "error", err)
		s.respondError(w, http.StatusInternalServerError, "document translation failed")
		return
	}
	if len(document) == 0 {
		s.respondError(w, http.StatusBadRequest, "no document supplied")
		return
	}

	targetLang := r.FormValue("target_lang")
	if targetLang == "" {
		targetLang = defaultTargetLang
	}

	result, err := s.runner.Run(r.Context(), document, targetLang)
	if err != nil {
		// Full detail stays in the logs; callers get one opaque failure.
		s.logger.Error("translation run failed",
			"error", err,
			"target_lang", targetLang,
			"request_id", middleware.GetReqID(r.Context()),
		)
		s.respondError(w, http.StatusInternalServerError, "document translation failed")
		return
	}

	s.respondJSON(w, http.StatusOK, TranslateResponse{DownloadURL: result.DownloadURL, RunID: result.RunID})
}

// handleGetRun returns the persisted record for one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.runs.GetRun(r.Context(), runID)
	if errors.Is(err, state.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read run", "run_id", runID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := RunResponse{
		ID:         run.ID,
		Status:     string(run.Status),
		TargetLang: run.TargetLang,
		OutputKey:  run.OutputKey,
		CreatedAt:  run.CreatedAt,
	}
	if run.CompletedAt != nil {
		resp.CompletedAt = run.CompletedAt
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, ErrorResponse{Error: msg})
}
