package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-logstage/pkg/logging"
)

// systemMetricsInterval is how often uptime, runtime and disk usage gauges
// are refreshed while serving.
const systemMetricsInterval = 10 * time.Second

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves on ln until ctx is done or the server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	s.logger.Info("starting HTTP server", logging.String("addr", ln.Addr().String()))

	go s.updateMetricsPeriodically(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(shutdownTimeout)
	}
}

// Shutdown initiates a graceful shutdown: new connections are refused and
// in-flight requests get up to timeout to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("initiating graceful shutdown", logging.Duration("timeout", timeout))

		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			s.logger.Error("error during shutdown", logging.Error(shutdownErr))
		} else {
			s.logger.Info("server shutdown complete")
		}
	})
	return err
}

// IsShuttingDown returns true if shutdown has been initiated
func (s *Server) IsShuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

func (s *Server) updateMetricsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		s.refreshMetrics()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		}
	}
}

func (s *Server) refreshMetrics() {
	s.metrics.UpdateSystemMetrics(s.startTime)
	if s.stagingRoot == "" {
		return
	}
	if err := s.metrics.UpdateDiskUsage(s.stagingRoot); err != nil {
		s.logger.Debug("failed to measure staging disk usage", logging.Error(err))
	}
}
