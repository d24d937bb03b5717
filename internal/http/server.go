// Package http serves the pipeline over a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetpipe/internal/cache"
	"budgetpipe/internal/core"
	"budgetpipe/internal/log"
	"budgetpipe/internal/middleware/ratelimit"
	"budgetpipe/internal/middleware/security"
	"budgetpipe/internal/middleware/trace"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/services"
	"budgetpipe/internal/storage"
)

// RunService is the part of services.PipelineService the handlers use.
type RunService interface {
	Run(ctx context.Context, table core.Table, cfg *rules.Config) (services.RunOutcome, error)
	Get(ctx context.Context, id string) (services.RunOutcome, error)
	List(ctx context.Context, limit int) ([]storage.Run, error)
}

type Options struct {
	Addr               string
	Rules              *rules.Config
	Logger             *log.Logger
	RunCacheSize       int
	RunCacheTTL        time.Duration
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

type Server struct {
	http.Server

	svc     RunService
	rules   *rules.Config
	maxBody int64

	runs    *cache.LRUCache[services.RunOutcome]
	caches  *cache.Manager
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. Call Start to begin background
// cleanup and serving.
func NewServer(svc RunService, opts Options) (*Server, error) {
	clientIP, err := security.NewClientIP()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}

	s := &Server{
		svc:     svc,
		rules:   opts.Rules,
		maxBody: opts.MaxBodyBytes,
		runs:    cache.NewLRUCache[services.RunOutcome](opts.RunCacheSize, opts.RunCacheTTL),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(clientIP.Extract),
	}
	s.caches = cache.NewManager(s.runs)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.Handle("POST /api/v1/runs", s.limiter.Middleware(clientIP.Extract, s.handleRateLimited)(http.HandlerFunc(s.handleCreateRun)))

	var h http.Handler = mux
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger.WithComponent(log.ComponentHTTP))(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Start runs the cache and rate limiter sweepers until ctx ends and serves
// until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.caches.Run(ctx, time.Minute)
	go s.limiter.Run(ctx)

	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
