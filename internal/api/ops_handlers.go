package api

import (
	"net/http"
)

// getCircuitBreakerHandler reports the admin-service circuit breaker state
func (s *Server) getCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"admin_service": s.adminHandler.Breaker().GetMetrics(),
			"load_shedding": s.degradation.GetMetrics(),
		},
	})
}

// resetCircuitBreakerHandler closes the admin-service circuit breaker
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	s.adminHandler.Breaker().Reset()
	s.degradation.Reset()

	s.logger.Info("Circuit breakers reset via admin API")

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"message": "Circuit breakers reset"},
	})
}

// getRateLimitsHandler reports the current rate limiter configuration
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"global":    s.rateLimiter.GetMetrics(),
			"endpoints": s.endpointLimiter.GetAllLimits(),
		},
	})
}
