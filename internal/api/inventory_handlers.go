package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aezzeldin/storefront-api/internal/models"
)

// updateInventoryFromOrderHandler reconciles one order's items against stock
func (s *Server) updateInventoryFromOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		OrderID string `json:"order_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.OrderID == "" {
		s.respondWithError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	result, err := s.inventoryService.ReconcileOrder(ctx, req.OrderID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}

// syncAllOrdersHandler sweeps every unreconciled order
func (s *Server) syncAllOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.inventoryService.SweepUnprocessed(ctx)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}

// getProductInventoryHandler returns a product's stock
func (s *Server) getProductInventoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	inventory, err := s.inventoryService.GetProductInventory(ctx, id)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    inventory,
	})
}

// setProductInventoryHandler replaces a product's variant stock
func (s *Server) setProductInventoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req struct {
		Variants []models.InventoryVariant `json:"variants"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	inventory, err := s.inventoryService.SetProductInventory(ctx, id, req.Variants)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    inventory,
	})
}

// reduceProductInventoryHandler deducts stock from one variant directly
func (s *Server) reduceProductInventoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req struct {
		Size     string `json:"size"`
		Color    string `json:"color"`
		Quantity int    `json:"quantity"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	result, err := s.inventoryService.ReduceProductInventory(ctx, id, req.Size, req.Color, req.Quantity)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}
