// Package http serves the upload form, the reports and the health probes.
package http

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"expenses/internal/ingest"
	"expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/report"
	appweb "expenses/web"
)

const (
	DefaultMaxUploadBytes int64 = 10 << 20

	staticMaxAge = 3600
	readyTimeout = 5 * time.Second
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	templates *template.Template
	db        Pinger
	ingest    *ingest.Service
	report    *report.Service
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	maxUpload int64
	started   time.Time
}

type Option func(*Server)

func WithTemplates(t *template.Template) Option {
	return func(s *Server) { s.templates = t }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithUploadRateLimit caps uploads per client IP per minute.
func WithUploadRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerWindow: perMinute, Window: time.Minute})
	}
}

// NewServer configures routes and templates, returning a ready-to-run
// server. Without WithTemplates the embedded templates are parsed here.
func NewServer(addr string, db Pinger, ing *ingest.Service, rep *report.Service, opts ...Option) *Server {
	s := &Server{
		db:        db,
		ingest:    ing,
		report:    rep,
		logger:    log.Discard(),
		maxUpload: DefaultMaxUploadBytes,
		detector:  security.NewDetector(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if s.templates == nil {
		t, err := appweb.ParseTemplates()
		if err != nil {
			s.logger.Warn("Failed parsing templates", log.FieldError, err.Error())
		}
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Limiter exposes the upload limiter so its expired windows can be swept.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware(s.logger))

	r.Get("/", s.handleIndex)
	r.Get("/docs-page", s.handleDocs)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Get("/upload", s.handleUploadForm)
	r.With(s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited)).Post("/upload", s.handleUpload)

	r.Get("/report", s.handleReport)
	r.Get("/report/pdf", s.handleReportPDF)
	r.Get("/api/report", s.handleReportJSON)

	if static, err := appweb.Static(); err == nil {
		r.With(security.StaticCache(staticMaxAge)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)
	return r
}
