package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/service"
)

// AuthHandler bootstraps users from the identity provider.
type AuthHandler struct {
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewAuthHandler(identity *service.IdentityService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, logger: logger}
}

type syncRequest struct {
	ExternalSubject string  `json:"externalSubject" validate:"required_without=FirebaseUID,max=128"`
	FirebaseUID     string  `json:"firebaseUid" validate:"max=128"` // older clients
	Email           string  `json:"email" validate:"required,email,max=254"`
	Name            string  `json:"name" validate:"required,max=100"`
	PhotoURL        *string `json:"photoUrl"`
}

// HandleSync returns the user for the posted subject, creating it on first
// sight.
//
// HTTP: POST /api/auth/sync → 201 when created, 200 when it already existed.
//
// A bearer token is optional here. When a valid one is present (recorded by
// auth.OptionalSubject) it must name the same subject as the body.
func (h *AuthHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	subject := req.ExternalSubject
	if subject == "" {
		subject = req.FirebaseUID
	}
	tokenSubject, _ := auth.SubjectFromContext(r.Context())

	user, created, err := h.identity.Sync(r.Context(), service.SyncInput{
		ExternalSubject: subject,
		Email:           req.Email,
		Name:            req.Name,
		PhotoURL:        req.PhotoURL,
	}, tokenSubject)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, user)
}
