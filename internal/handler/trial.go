package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/service"
)

// TrialHandler exposes trial generation and the caller's trial history.
// Every route runs behind RequireAuth, so the user id always comes from the
// request context and never from the body.
type TrialHandler struct {
	trials *service.TrialService
	logger *slog.Logger
}

// NewTrialHandler returns a handler backed by trials.
func NewTrialHandler(trials *service.TrialService, logger *slog.Logger) *TrialHandler {
	return &TrialHandler{trials: trials, logger: logger}
}

// Count limits are enforced by the service so the messages stay the same
// for every caller.
type generateRequest struct {
	ModelIDs  []string `json:"modelIds" validate:"required"`
	FabricIDs []string `json:"fabricIds" validate:"required"`
}

// HandleGenerate creates the pending trials and returns them at once.
// Images arrive in the background; clients poll GET /api/trials/{id}.
//
// HTTP: POST /api/trials/generate → 201
func (h *TrialHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	trials, err := h.trials.Generate(r.Context(), userID, req.ModelIDs, req.FabricIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, trials)
}

// HandleList serves GET /api/trials?status=
func (h *TrialHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	trials, err := h.trials.List(r.Context(), userID, model.TrialStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, trials)
}

// HandleGet serves GET /api/trials/{id}. Another user's trial is 404.
func (h *TrialHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	trial, err := h.trials.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, trial)
}
