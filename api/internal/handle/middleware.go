package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/metrics"
)

const RequestIDHeader = "X-Request-Id"

type ctxKey struct{}

// RequestID returns the id attached by Middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware tags each request with an id, logs it and records metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		d := time.Since(start)
		metrics.ObserveHTTP(r.Method, r.URL.Path, rec.status, d)
		entry := log.WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   d.Round(time.Millisecond).String(),
		})
		if rec.status >= 500 {
			entry.Warn("http request")
		} else {
			entry.Debug("http request")
		}
	})
}

func metricsHandler() http.Handler { return metrics.Handler() }
