package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/service"
)

// CartHandler serves the caller's cart and checkout.
type CartHandler struct {
	carts  *service.CartService
	logger *slog.Logger
}

func NewCartHandler(carts *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type addCartRequest struct {
	TrialID  string `json:"trialId" validate:"required"`
	ModelID  string `json:"modelId" validate:"required"`
	FabricID string `json:"fabricId" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

// HandleList serves GET /api/cart
func (h *CartHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	lines, err := h.carts.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// HandleAdd serves POST /api/cart → 201
func (h *CartHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	item, err := h.carts.Add(r.Context(), userID, service.AddCartItem{
		TrialID:  req.TrialID,
		ModelID:  req.ModelID,
		FabricID: req.FabricID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleRemove serves DELETE /api/cart/{id} → 204
func (h *CartHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.carts.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCheckout serves POST /api/orders/checkout → 201 with the new order
func (h *CartHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	order, err := h.carts.Checkout(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
