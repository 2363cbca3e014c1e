package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/service"
)

// OrderHandler serves order history and the admin dashboard.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// HandleListOwn serves GET /api/orders
func (h *OrderHandler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	orders, err := h.orders.ListOwn(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandleGetOwn serves GET /api/orders/{id}
func (h *OrderHandler) HandleGetOwn(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	order, err := h.orders.GetOwn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// HandleListAll serves GET /api/admin/orders
func (h *OrderHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandleStats serves GET /api/admin/stats
func (h *OrderHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.orders.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
