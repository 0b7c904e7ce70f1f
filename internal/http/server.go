package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	applog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

// ServerConfig tunes the middleware around the API.
type ServerConfig struct {
	RequestsPerMinute int
	TrustedProxies    []string
	// AllowedOrigins enables CORS for browser clients; empty disables it.
	AllowedOrigins []string
	// RuntimeMetrics adds Go and process collectors to /metrics.
	RuntimeMetrics bool
}

type Server struct {
	http.Server
	ledger   Ledger
	verifier TokenVerifier
	logger   *applog.Logger
	now      func() time.Time

	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	metrics  *metrics.Registry

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger Ledger, verifier TokenVerifier, logger *applog.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	httpLogger := logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			httpLogger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		ledger:   ledger,
		verifier: verifier,
		logger:   httpLogger,
		now:      time.Now,
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		metrics:  metrics.New(metrics.Config{RuntimeCollectors: cfg.RuntimeMetrics}),
	}

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Instrument(pattern, h))
	}
	route("GET /healthz", handleHealth)
	route("GET /readyz", s.handleReady)
	route("GET /api/dashboard", s.requireAuth(s.handleDashboard))
	route("GET /api/entries", s.requireAuth(s.handleListEntries))
	route("POST /api/entries", s.requireAuth(s.handleCreateEntry))
	route("GET /api/budgets/{key}", s.requireAuth(s.handleGetBudget))
	route("PUT /api/budgets/{key}", s.requireAuth(s.handlePutBudget))
	route("GET /api/reports", s.requireAuth(s.handleReport))
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimited, http.MethodPost, http.MethodPut)(h)
	h = applog.Middleware(httpLogger, trace.RequestIDFrom)(h)
	h = s.tracer.Middleware(h)
	if len(cfg.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodOptions,
			},
			AllowedHeaders: []string{"Authorization", "Content-Type", trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
			MaxAge:         300,
		}).Handler(h)
	}
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	s.metrics.RateLimited()
	_ = NewJSONResponse().Error(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// Metrics reports request counters collected by the trace middleware. The
// Prometheus view of the same traffic is served at /metrics.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown stops the limiter and then the HTTP server. Only the first call
// has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
