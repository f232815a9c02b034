package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/aezzeldin/storefront-api/pkg/circuitbreaker"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// GracefulDegradation sheds load from non-essential endpoints when the
// service is repeatedly failing. Checkout and inventory reconciliation are
// always allowed through.
type GracefulDegradation struct {
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewGracefulDegradation creates a new graceful degradation middleware
func NewGracefulDegradation(logger logger.Logger) *GracefulDegradation {
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		FailureThreshold: 10,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 5,
	})

	return &GracefulDegradation{
		breaker: breaker,
		logger:  logger,
	}
}

// Middleware returns a middleware function
func (gd *GracefulDegradation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isEssential := isEssentialEndpoint(r.URL.Path)

		if !isEssential && !gd.breaker.Allow() {
			gd.logger.Warn("Circuit is open, request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"state", gd.breaker.GetState())

			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service is temporarily unavailable. Please try again later."))
			return
		}

		wrapped := newStatusCodeWriter(w)
		next.ServeHTTP(wrapped, r)

		if !isEssential {
			if wrapped.statusCode >= http.StatusInternalServerError {
				gd.breaker.Failure()
			} else {
				gd.breaker.Success()
			}
		}
	})
}

// GetMetrics returns the breaker metrics
func (gd *GracefulDegradation) GetMetrics() map[string]interface{} {
	return gd.breaker.GetMetrics()
}

// Reset closes the breaker
func (gd *GracefulDegradation) Reset() {
	gd.breaker.Reset()
}

// isEssentialEndpoint reports whether the path must never be shed. Order
// placement and the reconciliation triggers stay available under load.
func isEssentialEndpoint(path string) bool {
	return strings.HasSuffix(path, "/health") ||
		strings.Contains(path, "/orders") ||
		strings.Contains(path, "/inventory")
}

type statusCodeWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusCodeWriter(w http.ResponseWriter) *statusCodeWriter {
	return &statusCodeWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusCodeWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
