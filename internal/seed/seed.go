// Package seed loads the starter catalog into an empty store.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// Catalog is the subset of the store the seeder touches.
type Catalog interface {
	repository.ModelRepository
	repository.FabricRepository
}

// Load writes the starter models and fabrics unless the store already has
// models. It writes through the repository directly: the starter images are
// stock photos that live off the trusted upload origin. It reports whether
// anything was written.
func Load(ctx context.Context, store Catalog, logger *slog.Logger) (bool, error) {
	existing, err := store.ListModels(ctx)
	if err != nil {
		return false, fmt.Errorf("checking catalog: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug("catalog already seeded", slog.Int("models", len(existing)))
		return false, nil
	}

	models, fabrics := Models(), Fabrics()
	for i := range models {
		if err := store.CreateModel(ctx, &models[i]); err != nil {
			return false, fmt.Errorf("seeding model %q: %w", models[i].Name, err)
		}
	}
	for i := range fabrics {
		if err := store.CreateFabric(ctx, &fabrics[i]); err != nil {
			return false, fmt.Errorf("seeding fabric %q: %w", fabrics[i].Name, err)
		}
	}

	logger.Info("catalog seeded", slog.Int("models", len(models)), slog.Int("fabrics", len(fabrics)))
	return true, nil
}

const (
	unsplash   = "https://images.unsplash.com/"
	modelCrop  = "?w=400&h=600&fit=crop"
	fabricCrop = "?w=400&h=400&fit=crop"
)

func shapes(s ...model.BodyShape) []model.BodyShape { return s }
func tones(t ...model.SkinTone) []model.SkinTone { return t }

// Models returns a fresh copy of the starter models.
func Models() []model.Model {
	return []model.Model{
		{
			Name:        "Classic Summer Dress",
			ImageURL:    unsplash + "photo-1595777457583-95e059d581b8" + modelCrop,
			Category:    model.CategoryCasual,
			BodyShapes:  shapes(model.BodyShapeHourglass, model.BodyShapePear, model.BodyShapeRectangle),
			Description: model.Ptr("Light and breezy summer dress perfect for warm days"),
		},
		{
			Name:        "Elegant Evening Gown",
			ImageURL:    unsplash + "photo-1566174053879-31528523f8ae" + modelCrop,
			Category:    model.CategoryFormal,
			BodyShapes:  shapes(model.BodyShapeHourglass, model.BodyShapeInvertedTriangle),
			Description: model.Ptr("Sophisticated gown for special occasions"),
		},
		{
			Name:        "Casual Denim Jacket",
			ImageURL:    unsplash + "photo-1551028719-00167b16eac5" + modelCrop,
			Category:    model.CategoryCasual,
			BodyShapes:  shapes(model.BodyShapeRectangle, model.BodyShapeInvertedTriangle, model.BodyShapeApple),
			Description: model.Ptr("Versatile denim jacket for everyday wear"),
		},
		{
			Name:        "Traditional Saree",
			ImageURL:    unsplash + "photo-1610030469983-98e550d6193c" + modelCrop,
			Category:    model.CategoryEthnic,
			BodyShapes:  shapes(model.BodyShapeHourglass, model.BodyShapePear, model.BodyShapeRectangle),
			Description: model.Ptr("Beautiful traditional saree with modern draping"),
		},
		{
			Name:        "Party Cocktail Dress",
			ImageURL:    unsplash + "photo-1566174053879-31528523f8ae" + modelCrop,
			Category:    model.CategoryParty,
			BodyShapes:  shapes(model.BodyShapeHourglass, model.BodyShapeApple, model.BodyShapePear),
			Description: model.Ptr("Stunning cocktail dress for evening parties"),
		},
		{
			Name:        "Athletic Sportswear Set",
			ImageURL:    unsplash + "photo-1517836357463-d25dfeac3438" + modelCrop,
			Category:    model.CategorySportswear,
			BodyShapes:  shapes(model.BodyShapeRectangle, model.BodyShapeInvertedTriangle, model.BodyShapeHourglass),
			Description: model.Ptr("Comfortable sportswear for active lifestyle"),
		},
		{
			Name:        "Business Formal Blazer",
			ImageURL:    unsplash + "photo-1591369822096-ffd140ec948f" + modelCrop,
			Category:    model.CategoryFormal,
			BodyShapes:  shapes(model.BodyShapeRectangle, model.BodyShapeInvertedTriangle, model.BodyShapeApple),
			Description: model.Ptr("Professional blazer for business meetings"),
		},
		{
			Name:        "Bohemian Maxi Dress",
			ImageURL:    unsplash + "photo-1572804013309-59a88b7e92f1" + modelCrop,
			Category:    model.CategoryCasual,
			BodyShapes:  shapes(model.BodyShapePear, model.BodyShapeRectangle, model.BodyShapeApple),
			Description: model.Ptr("Flowing maxi dress with bohemian prints"),
		},
	}
}

// Fabrics returns a fresh copy of the starter fabrics.
func Fabrics() []model.Fabric {
	return []model.Fabric{
		{
			Name:        "Soft Cotton Blue",
			ImageURL:    unsplash + "photo-1586105251261-72a756497a11" + fabricCrop,
			Texture:     model.TextureCotton,
			SkinTones:   tones(model.SkinToneFair, model.SkinToneLight, model.SkinToneMedium),
			Price:       45,
			Description: model.Ptr("Breathable cotton fabric in calming blue"),
		},
		{
			Name:        "Luxe Silk Ivory",
			ImageURL:    unsplash + "photo-1558769132-cb1aea56c9fd" + fabricCrop,
			Texture:     model.TextureSilk,
			SkinTones:   tones(model.SkinToneFair, model.SkinToneLight, model.SkinToneOlive),
			Price:       89,
			Description: model.Ptr("Premium silk with elegant drape"),
		},
		{
			Name:        "Warm Wool Burgundy",
			ImageURL:    unsplash + "photo-1507682119456-c34f4913c06b" + fabricCrop,
			Texture:     model.TextureWool,
			SkinTones:   tones(model.SkinToneMedium, model.SkinToneOlive, model.SkinToneTan),
			Price:       75,
			Description: model.Ptr("Cozy wool blend in rich burgundy"),
		},
		{
			Name:        "Classic Denim Indigo",
			ImageURL:    unsplash + "photo-1582418702059-97ebafb35d09" + fabricCrop,
			Texture:     model.TextureDenim,
			SkinTones:   tones(model.SkinToneLight, model.SkinToneMedium, model.SkinToneTan),
			Price:       55,
			Description: model.Ptr("Durable denim in classic indigo"),
		},
		{
			Name:        "Airy Linen Beige",
			ImageURL:    unsplash + "photo-1586105251261-72a756497a11" + fabricCrop,
			Texture:     model.TextureLinen,
			SkinTones:   tones(model.SkinToneOlive, model.SkinToneTan, model.SkinToneDeep),
			Price:       52,
			Description: model.Ptr("Light linen perfect for summer"),
		},
		{
			Name:        "Sleek Polyester Black",
			ImageURL:    unsplash + "photo-1558769132-cb1aea56c9fd" + fabricCrop,
			Texture:     model.TexturePolyester,
			SkinTones:   append([]model.SkinTone(nil), model.SkinTones...),
			Price:       38,
			Description: model.Ptr("Versatile polyester in timeless black"),
		},
		{
			Name:        "Delicate Chiffon Pink",
			ImageURL:    unsplash + "photo-1507682119456-c34f4913c06b" + fabricCrop,
			Texture:     model.TextureChiffon,
			SkinTones:   tones(model.SkinToneFair, model.SkinToneLight, model.SkinToneMedium),
			Price:       65,
			Description: model.Ptr("Flowing chiffon in soft pink"),
		},
		{
			Name:        "Rich Velvet Emerald",
			ImageURL:    unsplash + "photo-1582418702059-97ebafb35d09" + fabricCrop,
			Texture:     model.TextureVelvet,
			SkinTones:   tones(model.SkinToneOlive, model.SkinToneTan, model.SkinToneDeep),
			Price:       95,
			Description: model.Ptr("Luxurious velvet in deep emerald"),
		},
	}
}
