// Package server exposes checklist extraction and its live progress over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/extract"
	"github.com/sells-group/checklist-cli/internal/model"
	"github.com/sells-group/checklist-cli/internal/progress"
	"github.com/sells-group/checklist-cli/internal/resilience"
)

// Extractor runs one extraction.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) (*model.ExtractionResult, error)
}

// BreakerStates reports provider circuit breaker states for /health.
type BreakerStates interface {
	States() map[string]resilience.CircuitState
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MaxUploadMB    int
	// Keepalive is the SSE comment interval. Default: 15s.
	Keepalive time.Duration
}

// Server routes extraction and progress requests.
type Server struct {
	ext      Extractor
	progress *progress.Broadcaster
	breakers BreakerStates
	opts     Options
	validate *validator.Validate
}

// New creates a Server. progress must be the broadcaster the extractor
// publishes to. breakers may be nil.
func New(ext Extractor, b *progress.Broadcaster, breakers BreakerStates, opts Options) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 20
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 15 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		ext:      ext,
		progress: b,
		breakers: breakers,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/checklist", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Get("/progress", s.handleProgress)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	states := map[string]resilience.CircuitState{}
	if s.breakers != nil {
		states = s.breakers.States()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"breakers": states,
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
