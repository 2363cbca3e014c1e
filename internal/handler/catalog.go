package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/service"
)

// CatalogHandler serves models and fabrics: public listing and admin
// creation.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

type createModelRequest struct {
	Name        string            `json:"name" validate:"required,max=120"`
	ImageURL    string            `json:"imageUrl" validate:"required,url"`
	Category    model.Category    `json:"category" validate:"required"`
	BodyShapes  []model.BodyShape `json:"bodyShapes" validate:"max=5,dive,required"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
}

type createFabricRequest struct {
	Name        string           `json:"name" validate:"required,max=120"`
	ImageURL    string           `json:"imageUrl" validate:"required,url"`
	Texture     model.Texture    `json:"texture" validate:"required"`
	SkinTones   []model.SkinTone `json:"skinTones" validate:"max=6,dive,required"`
	Price       *int             `json:"price" validate:"required,min=0"`
	RetailerID  *string          `json:"retailerId" validate:"omitempty,max=128"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
}

// HandleListModels serves GET /api/models?category=&bodyShape=
func (h *CatalogHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	models, err := h.catalog.ListModels(r.Context(), service.ModelFilter{
		Category:  model.Category(q.Get("category")),
		BodyShape: model.BodyShape(q.Get("bodyShape")),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// HandleGetModel serves GET /api/models/{id}
func (h *CatalogHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.catalog.GetModel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleListFabrics serves GET /api/fabrics?texture=&skinTone=&maxPrice=&sort=
func (h *CatalogHandler) HandleListFabrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.FabricFilter{
		Texture:  model.Texture(q.Get("texture")),
		SkinTone: model.SkinTone(q.Get("skinTone")),
		Sort:     service.FabricSort(q.Get("sort")),
	}
	if raw := q.Get("maxPrice"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("maxPrice", "maxPrice must be a whole number"))
			return
		}
		filter.MaxPrice = &n
	}

	fabrics, err := h.catalog.ListFabrics(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fabrics)
}

// HandleGetFabric serves GET /api/fabrics/{id}
func (h *CatalogHandler) HandleGetFabric(w http.ResponseWriter, r *http.Request) {
	f, err := h.catalog.GetFabric(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleCreateModel serves POST /api/admin/models
func (h *CatalogHandler) HandleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req createModelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	m, err := h.catalog.CreateModel(r.Context(), service.NewModel{
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		BodyShapes:  req.BodyShapes,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleCreateFabric serves POST /api/admin/fabrics
func (h *CatalogHandler) HandleCreateFabric(w http.ResponseWriter, r *http.Request) {
	var req createFabricRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	f, err := h.catalog.CreateFabric(r.Context(), service.NewFabric{
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		Texture:     req.Texture,
		SkinTones:   req.SkinTones,
		Price:       *req.Price,
		RetailerID:  req.RetailerID,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}
