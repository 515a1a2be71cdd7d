package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/services"
)

// OrderHandler serves /orders.
type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req models.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.orders.Create(r.Context(), caller, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Order created successfully", order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.orders.List(r.Context(), caller, r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, "Orders retrieved successfully", page)
}

// ByStatus serves the paid order views for one status.
func (h *OrderHandler) ByStatus(status models.OrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.orders.ListByStatus(r.Context(), status, r.URL.Query())
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondPage(w, string(status)+" orders retrieved successfully", page)
	}
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.orders.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Order retrieved successfully", order)
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req models.UpdateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.orders.Update(r.Context(), caller, chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Order updated successfully", order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.orders.Delete(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Order deleted successfully", order)
}
