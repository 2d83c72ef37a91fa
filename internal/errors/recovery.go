package errors

import (
	"net/http"
	"runtime/debug"

	"github.com/copyleftdev/cocogo/internal/logging"
)

// RecoveryMiddleware returns a middleware that recovers from panics raised
// while serving a request. Precondition violations raised by the evaluation
// path are reported as 422 because they were caused by the request payload;
// anything else is a 500.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				status := http.StatusInternalServerError
				fields := map[string]interface{}{
					"error":  rec,
					"method": r.Method,
					"path":   r.URL.Path,
				}
				if err, ok := rec.(error); ok {
					fields["error"] = err.Error()
					if KindOf(err) == KindPrecondition {
						status = http.StatusUnprocessableEntity
					}
				}
				if status == http.StatusInternalServerError {
					fields["stack"] = string(debug.Stack())
				}

				logger.Error("Recovered from panic", fields)
				http.Error(w, http.StatusText(status), status)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ErrorHandler is a middleware that logs requests answered with an error status.
func ErrorHandler(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			if rw.status >= http.StatusBadRequest {
				logger.Warn("Request error", map[string]interface{}{
					"status": rw.status,
					"method": r.Method,
					"path":   r.URL.Path,
					"ip":     r.RemoteAddr,
				})
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code before writing the header.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
