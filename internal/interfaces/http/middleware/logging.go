// Package middleware holds the HTTP middleware of the monitoring server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
)

// LoggingConfig controls request logging.
type LoggingConfig struct {
	// SkipPaths are probe and scrape paths that are never logged.
	SkipPaths     []string
	SlowThreshold time.Duration
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 2 * time.Second,
	}
}

// LoggingMiddleware logs one line per request.  5xx responses log at error,
// 4xx and slow requests at warn.
type LoggingMiddleware struct {
	logger logging.Logger
	cfg    LoggingConfig
	skip   map[string]struct{}
}

func NewLoggingMiddleware(logger logging.Logger, cfg LoggingConfig) *LoggingMiddleware {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	return &LoggingMiddleware{logger: logger.Named("http"), cfg: cfg, skip: skip}
}

func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.skip[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("duration", elapsed),
			logging.String("remote_addr", r.RemoteAddr),
		}
		if id := chimw.GetReqID(r.Context()); id != "" {
			fields = append(fields, logging.String("request_id", id))
		}

		switch {
		case status >= http.StatusInternalServerError:
			m.logger.Error("HTTP request failed", fields...)
		case status >= http.StatusBadRequest:
			m.logger.Warn("HTTP request rejected", fields...)
		case m.cfg.SlowThreshold > 0 && elapsed >= m.cfg.SlowThreshold:
			m.logger.Warn("HTTP request slow", fields...)
		default:
			m.logger.Info("HTTP request completed", fields...)
		}
	})
}

//Personal.AI order the ending
