package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"teamledger/internal/core"
	"teamledger/internal/log"
	"teamledger/internal/middleware/ratelimit"
	"teamledger/internal/middleware/security"
	"teamledger/internal/middleware/trace"
)

// maxBodyBytes caps request bodies at 1 MiB.
const maxBodyBytes = 1 << 20

// OperationService is what the handlers need from the application layer.
type OperationService interface {
	CreateOperation(ctx context.Context, op core.Operation) (core.Operation, error)
	ListOperations(ctx context.Context) ([]core.Operation, error)
	ListTeams(ctx context.Context) ([]string, error)
	Dashboard(ctx context.Context, p core.Period) (core.Dashboard, error)
	Ping(ctx context.Context) error
}

// Options configures the middleware stack.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// Registry receives the HTTP metrics and backs GET /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

type Server struct {
	http.Server
	svc      OperationService
	logger   *log.Logger
	router   *chi.Mux
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc OperationService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, trace.NewMetrics(registry), logger)

	cors := security.DefaultCORSConfig()
	if len(opts.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = opts.CORSAllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(log.Middleware(logger))
	r.Use(tracer.Middleware)
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(security.CORS(cors))
	r.Use(s.detector.Middleware(logger))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/health", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	r.Get("/operations", s.handleListOperations)
	r.With(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)).
		Post("/operations", s.handleCreateOperation)
	r.Get("/teams", s.handleListTeams)
	r.Get("/dashboard", s.handleDashboard)

	s.router = r
	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	clientIP := s.detector.ExtractClientIP(r)
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, clientIP,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError(s.limiter.RetryAfter(clientIP)).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError(r.URL.Path).Write(w)
}

var routeMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	var allowed []string
	for _, m := range routeMethods {
		if s.router.Match(chi.NewRouteContext(), m, r.URL.Path) {
			allowed = append(allowed, m)
		}
	}
	MethodNotAllowedError(r.Method, allowed).Write(w)
}
