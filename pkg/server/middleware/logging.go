package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-logstage/pkg/logging"
)

// Logging creates middleware that logs each request with its status, timing
// and request ID. Health and scrape endpoints log at debug level.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := newStatusResponseWriter(w)

			next.ServeHTTP(wrapper, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.Path(r.URL.Path),
				logging.Int("status", wrapper.statusCode),
				logging.Latency(time.Since(start)),
			}
			if id := GetRequestID(r); id != "" {
				fields = append(fields, logging.RequestID(id))
			}

			switch {
			case wrapper.statusCode >= 500:
				logger.Error("request failed", fields...)
			case isQuietPath(r.URL.Path):
				logger.Debug("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

func isQuietPath(path string) bool {
	switch path {
	case "/health", "/health/ready", "/health/live", "/metrics":
		return true
	}
	return false
}
