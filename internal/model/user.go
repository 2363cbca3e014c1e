package model

import (
	"slices"
	"time"
)

// Role separates shoppers from catalog administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// BodyShape is the body-shape classification produced by photo analysis.
type BodyShape string

const (
	BodyShapeHourglass        BodyShape = "hourglass"
	BodyShapePear             BodyShape = "pear"
	BodyShapeApple            BodyShape = "apple"
	BodyShapeRectangle        BodyShape = "rectangle"
	BodyShapeInvertedTriangle BodyShape = "inverted-triangle"
)

// BodyShapes lists every valid BodyShape in display order.
var BodyShapes = []BodyShape{
	BodyShapeHourglass,
	BodyShapePear,
	BodyShapeApple,
	BodyShapeRectangle,
	BodyShapeInvertedTriangle,
}

func (b BodyShape) Valid() bool { return slices.Contains(BodyShapes, b) }

// SkinTone is the skin-tone classification produced by photo analysis.
type SkinTone string

const (
	SkinToneFair   SkinTone = "fair"
	SkinToneLight  SkinTone = "light"
	SkinToneMedium SkinTone = "medium"
	SkinToneOlive  SkinTone = "olive"
	SkinToneTan    SkinTone = "tan"
	SkinToneDeep   SkinTone = "deep"
)

var SkinTones = []SkinTone{
	SkinToneFair,
	SkinToneLight,
	SkinToneMedium,
	SkinToneOlive,
	SkinToneTan,
	SkinToneDeep,
}

func (s SkinTone) Valid() bool { return slices.Contains(SkinTones, s) }

// User is a shopper, keyed internally by ID and externally by the identity
// provider's subject. At most one User exists per ExternalID.
//
// Optional profile fields are pointers so "unset" survives a JSON round trip
// as null rather than a zero value.
type User struct {
	ID           string     `json:"id"`
	ExternalID   string     `json:"externalSubject"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PhotoURL     *string    `json:"photoUrl"`
	Age          *int       `json:"age"`
	Height       *int       `json:"height"` // centimetres
	Weight       *int       `json:"weight"` // kilograms
	BodyShape    *BodyShape `json:"bodyShape"`
	SkinTone     *SkinTone  `json:"skinTone"`
	ColorPalette []string   `json:"colorPalette"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// IsAdmin reports whether the user may call admin-only operations.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Clone returns a deep copy so stores never hand out references to their
// internal state.
func (u User) Clone() User {
	c := u
	c.PhotoURL = clonePtr(u.PhotoURL)
	c.Age = clonePtr(u.Age)
	c.Height = clonePtr(u.Height)
	c.Weight = clonePtr(u.Weight)
	c.BodyShape = clonePtr(u.BodyShape)
	c.SkinTone = clonePtr(u.SkinTone)
	c.ColorPalette = slices.Clone(u.ColorPalette)
	return c
}

// UserPatch is a partial update. Nil fields are left untouched. A PhotoURL
// pointing at "" clears the photo.
type UserPatch struct {
	Name         *string
	PhotoURL     *string
	Age          *int
	Height       *int
	Weight       *int
	BodyShape    *BodyShape
	SkinTone     *SkinTone
	ColorPalette []string
	Role         *Role
}

// Apply writes the non-nil fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PhotoURL != nil {
		if *p.PhotoURL == "" {
			u.PhotoURL = nil
		} else {
			u.PhotoURL = clonePtr(p.PhotoURL)
		}
	}
	if p.Age != nil {
		u.Age = clonePtr(p.Age)
	}
	if p.Height != nil {
		u.Height = clonePtr(p.Height)
	}
	if p.Weight != nil {
		u.Weight = clonePtr(p.Weight)
	}
	if p.BodyShape != nil {
		u.BodyShape = clonePtr(p.BodyShape)
	}
	if p.SkinTone != nil {
		u.SkinTone = clonePtr(p.SkinTone)
	}
	if p.ColorPalette != nil {
		u.ColorPalette = slices.Clone(p.ColorPalette)
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr is a small helper for building patches and fixtures.
func Ptr[T any](v T) *T { return &v }
