// Package api serves the analysis engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/logging"
	"github.com/nvandessel/qiflow/internal/ratelimit"
	"github.com/nvandessel/qiflow/internal/sampling"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	// RatePerSecond and Burst configure the per-client token bucket.
	RatePerSecond float64
	Burst         int

	// Registry receives the server's metrics. Nil uses a private registry.
	Registry *prometheus.Registry
}

// DefaultOptions returns 5 requests per second per client with a burst of 20.
func DefaultOptions() Options {
	return Options{RatePerSecond: 5, Burst: 20}
}

// Server is the HTTP surface of the engine.
type Server struct {
	analyzer *analysis.Analyzer
	sampler  *sampling.Sampler
	limiter  *ratelimit.Limiter
	metrics  *metrics
	registry *prometheus.Registry
	logger   *slog.Logger
}

// New returns a Server. sampler may be nil, which disables /v1/sample.
func New(a *analysis.Analyzer, sampler *sampling.Sampler, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		analyzer: a,
		sampler:  sampler,
		limiter:  ratelimit.NewLimiter(opts.RatePerSecond, opts.Burst),
		metrics:  newMetrics(reg),
		registry: reg,
		logger:   logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Limit per route so rejections keep their route label.
	r.Route("/v1", func(r chi.Router) {
		limited := r.With(s.rateLimit)
		limited.Post("/analyze", s.handleAnalyze)
		limited.Post("/wealth", s.handleWealth)
		limited.Post("/sample", s.handleSample)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
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
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) pruneLoop(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.limiter.Prune(10 * time.Minute)
		}
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if !decode(w, r, &req) {
		return
	}
	report, err := s.analyzer.Analyze(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.labels.WithLabelValues(report.StrengthLabel.String()).Inc()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWealth(w http.ResponseWriter, r *http.Request) {
	var req analysis.WealthRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := s.analyzer.CalculateWealthIndex(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.labels.WithLabelValues(report.StrengthLabel.String()).Inc()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if s.sampler == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "sampling is not enabled"})
		return
	}
	var req analysis.Request
	if !decode(w, r, &req) {
		return
	}
	res, err := s.sampler.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// rateLimit rejects clients that exhausted their token bucket.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			s.writeError(w, r, ratelimit.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorBody struct {
	Error string `json:"error"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var ice *chart.InvalidChartError
	var use *chart.UnknownSymbolError
	switch {
	case errors.As(err, &ice), errors.As(err, &use):
		return http.StatusBadRequest
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
