// Package ai defines the two external AI collaborators: photo analysis and
// try-on image generation. Implementations live in subpackages.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/fitting-room/internal/model"
)

// ErrMalformedAnalysis is returned when the analyzer answers with values
// outside the body-shape or skin-tone enumerations.
var ErrMalformedAnalysis = errors.New("ai: malformed analysis")

// AnalysisPrompt asks for the profile fields as JSON.
const AnalysisPrompt = `Analyze this person's photo and provide:
1. Body shape (choose one): hourglass, pear, apple, rectangle, inverted-triangle
2. Skin tone (choose one): fair, light, medium, olive, tan, deep
3. Recommended color palette (3-5 colors that would suit this person)

Respond in JSON format:
{
  "bodyShape": "...",
  "skinTone": "...",
  "colorPalette": ["color1", "color2", "color3"]
}`

// Analysis is a validated photo classification, ready to copy onto a
// user's profile. Build one with NewAnalysis.
type Analysis struct {
	BodyShape    model.BodyShape `json:"bodyShape"`
	SkinTone     model.SkinTone  `json:"skinTone"`
	ColorPalette []string        `json:"colorPalette"`
}

// TryOnRequest carries everything an image generator needs for one trial:
// the user's photo, the model's reference image and a fabric description
// such as "silk Royal Blue".
type TryOnRequest struct {
	UserPhotoURL      string
	ModelImageURL     string
	FabricDescription string
}

// Image is raw generated image bytes. MIMEType may be empty when the
// provider did not say; stores treat that as PNG.
type Image struct {
	Data     []byte
	MIMEType string
}

// Analyzer classifies a user's photo. Implementations fetch the photo
// themselves and must honor ctx, which carries the analysis timeout.
type Analyzer interface {
	AnalyzePhoto(ctx context.Context, photoURL string) (*Analysis, error)
}

// ImageGenerator produces a try-on image. It is called from the worker
// pool, one request per trial, under the per-job timeout.
type ImageGenerator interface {
	GenerateTryOn(ctx context.Context, req TryOnRequest) (*Image, error)
}

// NewAnalysis lowercases the raw classification and checks it against the
// enumerations. Empty palette entries are dropped.
func NewAnalysis(bodyShape, skinTone string, palette []string) (*Analysis, error) {
	shape := model.BodyShape(strings.ToLower(strings.TrimSpace(bodyShape)))
	if !shape.Valid() {
		return nil, fmt.Errorf("%w: body shape %q", ErrMalformedAnalysis, bodyShape)
	}
	tone := model.SkinTone(strings.ToLower(strings.TrimSpace(skinTone)))
	if !tone.Valid() {
		return nil, fmt.Errorf("%w: skin tone %q", ErrMalformedAnalysis, skinTone)
	}

	colors := make([]string, 0, len(palette))
	for _, c := range palette {
		if c = strings.TrimSpace(c); c != "" {
			colors = append(colors, c)
		}
	}
	return &Analysis{BodyShape: shape, SkinTone: tone, ColorPalette: colors}, nil
}

// TryOnPrompt is the instruction sent alongside the reference images.
func TryOnPrompt(fabricDescription string) string {
	return fmt.Sprintf(`Generate a realistic virtual try-on image showing a person wearing a %s outfit.
The clothing design should match this style. Create a professional fashion photography style image.`, fabricDescription)
}
