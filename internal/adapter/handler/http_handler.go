package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/inventory-service/internal/core/domain"
	"github.com/rl1809/inventory-service/internal/core/service"
)

type HTTPHandler struct {
	inventory *service.InventoryService
}

func NewHTTPHandler(inventory *service.InventoryService) *HTTPHandler {
	return &HTTPHandler{inventory: inventory}
}

// Routes mounts the inventory API.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)
	r.Post("/api/warehouses", h.AddWarehouse)
	r.Post("/api/inventory", h.AddInventory)
	r.Get("/api/availability", h.GetAvailability)
	r.Post("/api/availability/check", h.CheckAvailability)
	r.Post("/api/reservations", h.Reserve)
	r.Post("/api/reservations/{id}/confirm", h.Confirm)
	r.Post("/api/reservations/{id}/cancel", h.Cancel)
	r.Post("/api/reservations/{id}/extend", h.Extend)
	r.Post("/api/restore", h.Restore)
	r.Get("/api/low-stock", h.LowStock)
	r.Get("/api/summary", h.Summary)

	return r
}

type lineItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func toLineItems(items []lineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) AddWarehouse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Location    string `json:"location"`
		MaxCapacity *int   `json:"max_capacity,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	warehouse, err := h.inventory.AddWarehouse(r.Context(), req.Name, req.Location, req.MaxCapacity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"warehouse_id": warehouse.ID,
		"name":         warehouse.Name,
		"location":     warehouse.Location,
	})
}

func (h *HTTPHandler) AddInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID   string `json:"product_id"`
		WarehouseID string `json:"warehouse_id"`
		Quantity    int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	entry, err := h.inventory.AddInventory(r.Context(), req.ProductID, req.WarehouseID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := entry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":   snap.ProductID,
		"warehouse_id": snap.WarehouseID,
		"available":    snap.Available,
		"reserved":     snap.Reserved,
	})
}

func (h *HTTPHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "product_id required"})
		return
	}
	warehouseID := r.URL.Query().Get("warehouse_id")

	available, err := h.inventory.GetAvailableQuantity(r.Context(), productID, warehouseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"available":  available,
	})
}

func (h *HTTPHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []lineItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ok, err := h.inventory.CheckAvailability(r.Context(), toLineItems(req.Items))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string            `json:"customer_id"`
		Items      []lineItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "customer_id required"})
		return
	}

	reservationID, err := h.inventory.ReserveItems(r.Context(), toLineItems(req.Items), req.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"reservation_id": reservationID})
}

func (h *HTTPHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.inventory.ConfirmReservation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled, err := h.inventory.CancelReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *HTTPHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "positive minutes required"})
		return
	}

	err := h.inventory.ExtendReservation(r.Context(), id, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "extended"})
}

func (h *HTTPHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []lineItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.inventory.RestoreItems(r.Context(), toLineItems(req.Items)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := 0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "threshold must be a positive integer"})
			return
		}
		threshold = parsed
	}

	alerts, err := h.inventory.GetLowStockProducts(r.Context(), threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []domain.LowStockAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *HTTPHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.inventory.InventorySummary(r.Context(), r.URL.Query().Get("product_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrWarehouseUnavailable):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInsufficientInventory):
		status = http.StatusConflict
	case errors.Is(err, service.ErrReservationFailed):
		status = http.StatusConflict
	case errors.Is(err, service.ErrReservationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidReservationState):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
