package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger logs every request's method, path and latency, tagging each with a
// correlation ID so a single request's log lines can be grepped together.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.RequestURI,
			"duration":   time.Since(start),
		}).Info("handled request")
	})
}
