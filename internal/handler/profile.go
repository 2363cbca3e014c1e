package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/service"
)

// ProfileHandler serves the caller's own profile and photo analysis.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// profilePatchRequest lists the fields a user may change. Role is
// deliberately absent.
type profilePatchRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=100"`
	PhotoURL     *string          `json:"photoUrl" validate:"omitempty,max=2048"` // "" clears the photo
	Age          *int             `json:"age" validate:"omitempty,min=1,max=120"`
	Height       *int             `json:"height" validate:"omitempty,min=50,max=300"`
	Weight       *int             `json:"weight" validate:"omitempty,min=20,max=500"`
	BodyShape    *model.BodyShape `json:"bodyShape"`
	SkinTone     *model.SkinTone  `json:"skinTone"`
	ColorPalette []string         `json:"colorPalette" validate:"omitempty,max=12,dive,required,max=40"`
}

type analyzeRequest struct {
	PhotoURL string `json:"photoUrl" validate:"required"`
}

// HandleGet serves GET /api/user/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandlePatch serves PATCH /api/user/profile
func (h *ProfileHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var req profilePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.profiles.Update(r.Context(), userID, model.UserPatch{
		Name:         req.Name,
		PhotoURL:     req.PhotoURL,
		Age:          req.Age,
		Height:       req.Height,
		Weight:       req.Weight,
		BodyShape:    req.BodyShape,
		SkinTone:     req.SkinTone,
		ColorPalette: req.ColorPalette,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleStats serves GET /api/user/stats
func (h *ProfileHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	st, err := h.profiles.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleAnalyze serves POST /api/ai/analyze-photo
//
// Runs synchronously under the analyzer timeout. An analyzer failure is
// answered with 502.
func (h *ProfileHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	analysis, err := h.profiles.AnalyzePhoto(r.Context(), userID, req.PhotoURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
