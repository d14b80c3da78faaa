// Package api exposes recording, transcription, history and model management
// over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/events"
	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/metrics"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/whisper"
)

// Dictation is the orchestrator surface served over HTTP.
type Dictation interface {
	StartRecording(ctx context.Context) (string, error)
	StopRecording(ctx context.Context, opts dictation.StopOptions) (*dictation.Outcome, error)
	Transcribe(ctx context.Context, req dictation.TranscribeRequest) (*dictation.Outcome, error)
	RecordingInfo(ctx context.Context) (*recorder.Info, error)
	History(ctx context.Context, limit int) ([]history.Entry, error)
	HistoryEntry(ctx context.Context, id string) (*history.Entry, error)
	ListModels() []whisper.ModelInfo
	DownloadModel(ctx context.Context, name string, progress whisper.ProgressFunc) (whisper.DownloadResult, error)
	DeleteModel(name string) (bool, error)
	Effective(ctx context.Context) dictation.Settings
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey, when set, is required as a bearer token on every route except
	// /healthz and /metrics.
	APIKey         string
	AllowedOrigins []string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	dictation Dictation
	metrics   *metrics.Metrics
	events    *events.Hub
	validate  *validator.Validate
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. hub may be nil, in which case
// /events is not served.
func New(config Config, d Dictation, m *metrics.Metrics, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		dictation: d,
		metrics:   m,
		events:    hub,
		validate:  validator.New(),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Minute, // model downloads and long transcriptions
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen, "auth", s.config.APIKey != "")

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
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(s.config.AllowedOrigins)))

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(s.authMiddleware)
		}
		if s.events != nil {
			r.Get("/events", s.handleEvents)
		}
		r.Route("/recording", func(r chi.Router) {
			r.Get("/", s.handleRecordingStatus)
			r.Post("/start", s.handleRecordingStart)
			r.Post("/stop", s.handleRecordingStop)
		})
		r.Route("/transcriptions", func(r chi.Router) {
			r.Post("/", s.handleTranscribe)
			r.Get("/", s.handleListTranscriptions)
			r.Get("/{id}", s.handleGetTranscription)
		})
		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/{name}/download", s.handleDownloadModel)
			r.Delete("/{name}", s.handleDeleteModel)
		})
	})

	return r
}

func corsOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

// loggingMiddleware logs HTTP requests and records their latency.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveAPIRequest(r.Method, route, status, time.Since(start))
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
