package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// FabricSort is the order of a fabric list, as named in the sort query
// parameter.
type FabricSort string

const (
	SortNone      FabricSort = ""
	SortMatch     FabricSort = "match"
	SortPriceAsc  FabricSort = "price_asc"
	SortPriceDesc FabricSort = "price_desc"
)

// ModelFilter narrows the model list. Zero fields match everything.
type ModelFilter struct {
	Category  model.Category
	BodyShape model.BodyShape
}

// FabricFilter narrows and orders the fabric list.
//
// SkinTone filters by membership, except under SortMatch where it only
// ranks: fabrics suited to the tone come first and the rest follow.
type FabricFilter struct {
	Texture  model.Texture
	SkinTone model.SkinTone
	MaxPrice *int
	Sort     FabricSort
}

// NewModel is an admin request to add a clothing model. ImageURL must be on
// the trusted origin and every body shape must be known.
type NewModel struct {
	Name        string
	ImageURL    string
	Category    model.Category
	BodyShapes  []model.BodyShape
	Description *string
}

type NewFabric struct {
	Name        string
	ImageURL    string
	Texture     model.Texture
	SkinTones   []model.SkinTone
	Price       int
	RetailerID  *string
	Description *string
}

// CatalogCreator is the subset of the store that CatalogService writes to.
type CatalogCreator interface {
	repository.ModelRepository
	repository.FabricRepository
}

// CatalogService lists, filters and extends the model and fabric catalog.
type CatalogService struct {
	repo   CatalogCreator
	origin imageref.Origin
	logger *slog.Logger
}

func NewCatalogService(repo CatalogCreator, origin imageref.Origin, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, origin: origin, logger: logger}
}

func (s *CatalogService) ListModels(ctx context.Context, f ModelFilter) ([]model.Model, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", f.Category))
	}
	if f.BodyShape != "" && !f.BodyShape.Valid() {
		return nil, apperror.ValidationFailed("bodyShape", fmt.Sprintf("unknown body shape %q", f.BodyShape))
	}

	all, err := s.repo.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}

	out := make([]model.Model, 0, len(all))
	for _, m := range all {
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if f.BodyShape != "" && !m.Suits(f.BodyShape) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *CatalogService) GetModel(ctx context.Context, id string) (*model.Model, error) {
	return s.repo.GetModel(ctx, strings.TrimSpace(id))
}

func (s *CatalogService) ListFabrics(ctx context.Context, f FabricFilter) ([]model.Fabric, error) {
	if f.Texture != "" && !f.Texture.Valid() {
		return nil, apperror.ValidationFailed("texture", fmt.Sprintf("unknown texture %q", f.Texture))
	}
	if f.SkinTone != "" && !f.SkinTone.Valid() {
		return nil, apperror.ValidationFailed("skinTone", fmt.Sprintf("unknown skin tone %q", f.SkinTone))
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return nil, apperror.ValidationFailed("maxPrice", "max price must not be negative")
	}
	switch f.Sort {
	case SortNone, SortMatch, SortPriceAsc, SortPriceDesc:
	default:
		return nil, apperror.ValidationFailed("sort", fmt.Sprintf("unknown sort %q", f.Sort))
	}

	all, err := s.repo.ListFabrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing fabrics: %w", err)
	}

	out := make([]model.Fabric, 0, len(all))
	for _, fb := range all {
		if f.Texture != "" && fb.Texture != f.Texture {
			continue
		}
		if f.MaxPrice != nil && fb.Price > *f.MaxPrice {
			continue
		}
		if f.SkinTone != "" && f.Sort != SortMatch && !fb.Suits(f.SkinTone) {
			continue
		}
		out = append(out, fb)
	}

	switch f.Sort {
	case SortMatch:
		if f.SkinTone != "" {
			slices.SortStableFunc(out, func(a, b model.Fabric) int {
				return cmp.Compare(rank(a.Suits(f.SkinTone)), rank(b.Suits(f.SkinTone)))
			})
		}
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b model.Fabric) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b model.Fabric) int { return cmp.Compare(b.Price, a.Price) })
	}
	return out, nil
}

func rank(match bool) int {
	if match {
		return 0
	}
	return 1
}

func (s *CatalogService) GetFabric(ctx context.Context, id string) (*model.Fabric, error) {
	return s.repo.GetFabric(ctx, strings.TrimSpace(id))
}

func (s *CatalogService) CreateModel(ctx context.Context, in NewModel) (*model.Model, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if !s.origin.Allows(in.ImageURL) {
		return nil, apperror.ValidationFailed("imageUrl", fmt.Sprintf("image must be hosted on %s", s.origin))
	}
	if !in.Category.Valid() {
		return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", in.Category))
	}
	for _, b := range in.BodyShapes {
		if !b.Valid() {
			return nil, apperror.ValidationFailed("bodyShapes", fmt.Sprintf("unknown body shape %q", b))
		}
	}

	m := &model.Model{
		Name:        name,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		BodyShapes:  dedupe(in.BodyShapes),
		Description: trimmedOrNil(in.Description),
	}
	if err := s.repo.CreateModel(ctx, m); err != nil {
		s.logger.Error("failed to create model", slog.String("name", name), slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating model: %w", err)
	}

	s.logger.Info("model created", slog.String("modelID", m.ID), slog.String("name", m.Name))
	return m, nil
}

func (s *CatalogService) CreateFabric(ctx context.Context, in NewFabric) (*model.Fabric, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if !s.origin.Allows(in.ImageURL) {
		return nil, apperror.ValidationFailed("imageUrl", fmt.Sprintf("image must be hosted on %s", s.origin))
	}
	if !in.Texture.Valid() {
		return nil, apperror.ValidationFailed("texture", fmt.Sprintf("unknown texture %q", in.Texture))
	}
	for _, t := range in.SkinTones {
		if !t.Valid() {
			return nil, apperror.ValidationFailed("skinTones", fmt.Sprintf("unknown skin tone %q", t))
		}
	}
	if in.Price < 0 {
		return nil, apperror.ValidationFailed("price", "price must not be negative")
	}

	f := &model.Fabric{
		Name:        name,
		ImageURL:    in.ImageURL,
		Texture:     in.Texture,
		SkinTones:   dedupe(in.SkinTones),
		Price:       in.Price,
		RetailerID:  trimmedOrNil(in.RetailerID),
		Description: trimmedOrNil(in.Description),
	}
	if err := s.repo.CreateFabric(ctx, f); err != nil {
		s.logger.Error("failed to create fabric", slog.String("name", name), slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating fabric: %w", err)
	}

	s.logger.Info("fabric created", slog.String("fabricID", f.ID), slog.String("name", f.Name))
	return f, nil
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	seen := make(map[T]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
