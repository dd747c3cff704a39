// Package server exposes the alert pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zen-systems/socflow/pkg/pipeline"
)

// Banner is returned by GET /.
const Banner = "AI Security Copilot API is running. Use /analyze_alert to process alerts."

// maxBodyBytes caps the size of an alert request.
const maxBodyBytes = 1 << 20

// Analyzer runs an alert through a named pipeline with a model selector.
// Empty model or pipeline selects the configured defaults.
type Analyzer interface {
	Analyze(ctx context.Context, alert, model, pipelineName string) (*pipeline.Run, error)
}

// AnalyzeRequest is the body of POST /analyze_alert.
type AnalyzeRequest struct {
	AlertText string `json:"alert_text"`
	Model     string `json:"model,omitempty"`
	Pipeline  string `json:"pipeline,omitempty"`
}

// AnalyzeResponse is the success body of POST /analyze_alert.
type AnalyzeResponse struct {
	Status string `json:"status"`
	Report string `json:"report"`
	RunID  string `json:"run_id,omitempty"`
}

// ErrorResponse carries the failure detail as text.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Options configures a Server.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server is the HTTP boundary.
type Server struct {
	Router   *chi.Mux
	addr     string
	analyzer Analyzer
	logger   *slog.Logger
}

// New builds the router and its middleware chain.
func New(analyzer Analyzer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "socflow")
	})

	s := &Server{Router: r, addr: opts.Addr, analyzer: analyzer, logger: logger}

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Post("/analyze_alert", s.handleAnalyze)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": Banner})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		AddError(r.Context(), err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.AlertText) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: pipeline.ErrEmptyAlert.Error()})
		return
	}

	run, err := s.analyzer.Analyze(r.Context(), req.AlertText, req.Model, req.Pipeline)
	if run != nil {
		AddLogField(r.Context(), "run_id", run.ID)
	}
	if err == nil {
		var report string
		report, err = pipeline.TerminalOutput(run)
		if err == nil {
			writeJSON(w, http.StatusOK, AnalyzeResponse{Status: "success", Report: report, RunID: run.ID})
			return
		}
	}

	if run != nil && run.Err != nil {
		err = run.Err
	}
	AddError(r.Context(), err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
