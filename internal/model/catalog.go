package model

import (
	"fmt"
	"slices"
	"time"
)

// Category groups catalog models by occasion.
type Category string

const (
	CategoryCasual     Category = "casual"
	CategoryFormal     Category = "formal"
	CategoryEthnic     Category = "ethnic"
	CategoryParty      Category = "party"
	CategorySportswear Category = "sportswear"
)

var Categories = []Category{
	CategoryCasual,
	CategoryFormal,
	CategoryEthnic,
	CategoryParty,
	CategorySportswear,
}

func (c Category) Valid() bool { return slices.Contains(Categories, c) }

// Texture is the material family of a fabric.
type Texture string

const (
	TextureCotton    Texture = "cotton"
	TextureSilk      Texture = "silk"
	TextureWool      Texture = "wool"
	TextureDenim     Texture = "denim"
	TextureLinen     Texture = "linen"
	TexturePolyester Texture = "polyester"
	TextureChiffon   Texture = "chiffon"
	TextureVelvet    Texture = "velvet"
)

var Textures = []Texture{
	TextureCotton,
	TextureSilk,
	TextureWool,
	TextureDenim,
	TextureLinen,
	TexturePolyester,
	TextureChiffon,
	TextureVelvet,
}

func (t Texture) Valid() bool { return slices.Contains(Textures, t) }

// Model is a catalog garment design. Models are created by administrators
// and never change afterwards.
type Model struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ImageURL    string      `json:"imageUrl"`
	Category    Category    `json:"category"`
	BodyShapes  []BodyShape `json:"bodyShapes"`
	Description *string     `json:"description"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (m Model) Clone() Model {
	c := m
	c.BodyShapes = slices.Clone(m.BodyShapes)
	c.Description = clonePtr(m.Description)
	return c
}

// Suits reports whether the model is recommended for the body shape.
func (m Model) Suits(shape BodyShape) bool { return slices.Contains(m.BodyShapes, shape) }

// Fabric is a purchasable material. Price is in whole currency units.
type Fabric struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ImageURL    string     `json:"imageUrl"`
	Texture     Texture    `json:"texture"`
	SkinTones   []SkinTone `json:"skinTones"`
	Price       int        `json:"price"`
	RetailerID  *string    `json:"retailerId"`
	Description *string    `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (f Fabric) Clone() Fabric {
	c := f
	c.SkinTones = slices.Clone(f.SkinTones)
	c.RetailerID = clonePtr(f.RetailerID)
	c.Description = clonePtr(f.Description)
	return c
}

// Suits reports whether the fabric is recommended for the skin tone.
func (f Fabric) Suits(tone SkinTone) bool { return slices.Contains(f.SkinTones, tone) }

// PromptDescription is the phrase handed to the image generator,
// e.g. "silk Luxe Silk Ivory".
func (f Fabric) PromptDescription() string {
	return fmt.Sprintf("%s %s", f.Texture, f.Name)
}
