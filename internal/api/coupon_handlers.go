package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/service"
)

// validateCouponHandler resolves a discount code to a policy or a rejection
// reason. An unknown or ineligible code is a successful validation with
// valid=false, not an error.
func (s *Server) validateCouponHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Code     string           `json:"code"`
		Subtotal *decimal.Decimal `json:"subtotal,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Code == "" {
		s.respondWithError(w, http.StatusBadRequest, "code is required")
		return
	}

	result, err := s.couponService.Validate(ctx, req.Code, req.Subtotal)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}

// validateCouponQueryHandler is the GET form of code validation, taking the
// code (and optional subtotal) as query parameters.
func (s *Server) validateCouponQueryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.URL.Query().Get("code")

	if code == "" {
		s.respondWithError(w, http.StatusBadRequest, "code is required")
		return
	}

	var subtotal *decimal.Decimal

	if raw := r.URL.Query().Get("subtotal"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "invalid subtotal")
			return
		}
		subtotal = &value
	}

	result, err := s.couponService.Validate(ctx, code, subtotal)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}

// redeemCouponHandler queues a redemption event for an existing order. The
// admin service is notified asynchronously; a delivery failure never fails
// this call.
func (s *Server) redeemCouponHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.RedeemCouponRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	event, err := s.orderService.RedeemCoupon(ctx, &req)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"event_id": event.ID,
			"status":   event.Status,
		},
	})
}
