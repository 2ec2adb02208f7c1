package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pario-ai/askgate/pkg/gateway"
)

const requestIDHeader = "X-Request-ID"

// newRequestID returns an ID like "req_a1b2c3d4".
func newRequestID() string {
	return "req_" + uuid.New().String()[:8]
}

// requestIDMiddleware reuses the caller's X-Request-ID or assigns one, and
// echoes it back in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(gateway.WithRequestID(r.Context(), id)))
	})
}

// loggingMiddleware logs request start and completion with latency.
func loggingMiddleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := gateway.RequestID(r.Context())

			log.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"event":      "started",
			}).Info("Request started")

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"request_id": requestID,
				"status":     ww.Status(),
				"latency_ms": time.Since(start).Milliseconds(),
				"event":      "completed",
			}).Info("Request completed")
		})
	}
}
