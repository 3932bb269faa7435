package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"finsync/internal/config"
	"finsync/internal/domain"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ReportExporter writes an operator workbook and returns its path.
type ReportExporter interface {
	Export(ctx context.Context, runLimit int) (string, error)
}

// HTTPServer exposes the observability and control surface of the sync
// daemon: status, recent run reports, pause/resume and prometheus metrics.
type HTTPServer struct {
	cfg        config.APIConfig
	controller domain.SyncController
	repo       domain.StatusRepository
	exporter   ReportExporter
	logger     *zerolog.Logger
	server     *http.Server
}

func NewHTTPServer(cfg config.APIConfig, controller domain.SyncController, repo domain.StatusRepository, exporter ReportExporter, metricsEnabled bool, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, controller: controller, repo: repo, exporter: exporter, logger: logger}

	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/status", srv.handleStatus)
	mux.HandleFunc("/api/v1/reports", srv.handleReports)
	mux.HandleFunc("/api/v1/sync/pause", srv.handlePause)
	mux.HandleFunc("/api/v1/sync/resume", srv.handleResume)
	if exporter != nil {
		mux.HandleFunc("/api/v1/export", srv.handleExport)
	}
	if metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	handler := srv.loggingMiddleware(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the assembled handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *HTTPServer) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	reports, err := s.repo.RecentReports(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read reports")
		writeError(w, http.StatusInternalServerError, "failed to read reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *HTTPServer) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.controller.PauseAll()
	writeJSON(w, http.StatusOK, map[string]string{"state": "paused"})
}

func (s *HTTPServer) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.controller.ResumeAll()
	writeJSON(w, http.StatusOK, map[string]string{"state": "running"})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runLimit := 50
	if raw := r.URL.Query().Get("runs"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "runs must be a positive integer")
			return
		}
		runLimit = parsed
	}

	path, err := s.exporter.Export(r.Context(), runLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to export report")
		writeError(w, http.StatusInternalServerError, "failed to export report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
