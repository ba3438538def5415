// Package server is the HTTP ingest surface of logstage: Arrow IPC batches in,
// staged files out, plus flush, stream deletion, health and metrics routes.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dd0wney/cluso-logstage/pkg/health"
	"github.com/dd0wney/cluso-logstage/pkg/logging"
	"github.com/dd0wney/cluso-logstage/pkg/metrics"
	"github.com/dd0wney/cluso-logstage/pkg/server/middleware"
	"github.com/dd0wney/cluso-logstage/pkg/writer"
)

// DefaultMaxBodyBytes bounds one ingest request body.
const DefaultMaxBodyBytes = 64 << 20

// Options configures a Server.
type Options struct {
	Addr         string
	Registry     *writer.Registry
	Health       *health.HealthChecker
	Metrics      *metrics.Registry
	Logger       logging.Logger
	MaxBodyBytes int64
	// StagingRoot, when set, is walked periodically for the disk usage gauge.
	StagingRoot string
}

// Server serves the ingest API.
type Server struct {
	registry    *writer.Registry
	health      *health.HealthChecker
	metrics     *metrics.Registry
	logger      logging.Logger
	maxBody     int64
	stagingRoot string
	startTime   time.Time

	httpServer   *http.Server
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New creates a server. Registry is required; a missing health checker or
// metrics registry gets a fresh one.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("server: Options.Registry is required")
	}
	if opts.Health == nil {
		opts.Health = health.NewHealthChecker()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		registry:    opts.Registry,
		health:      opts.Health,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With(logging.Component("server")),
		maxBody:     opts.MaxBodyBytes,
		stagingRoot: opts.StagingRoot,
		startTime:   time.Now(),
		shutdownCh:  make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/logstream/{stream}", s.handleAppend)
	mux.HandleFunc("DELETE /api/v1/logstream/{stream}", s.handleDeleteStream)
	mux.HandleFunc("POST /api/v1/flush", s.handleFlush)
	mux.HandleFunc("GET /api/v1/writers", s.handleWriters)

	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /health", s.health.HTTPHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
	mux.HandleFunc("GET /health/live", s.health.LivenessHandler())

	var handler http.Handler = mux
	handler = middleware.BodySizeLimit(s.maxBody)(handler)
	handler = middleware.Metrics(s.metrics)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.PanicRecovery(s.logger)(handler)
	return handler
}
