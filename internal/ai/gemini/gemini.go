// Package gemini implements the AI collaborators on Google's Gemini models.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sakif/fitting-room/internal/ai"
)

var (
	ErrNoCandidates = errors.New("gemini: no candidates in response")
	ErrNoImage      = errors.New("gemini: no image data in response")

	// ErrImageModel rejects image models that only answer with images when
	// the request sets response modalities, which genai.GenerationConfig
	// has no field for.
	ErrImageModel = errors.New("gemini: image model needs response modalities this client cannot set")
)

// Config names the models used for each collaborator.
type Config struct {
	APIKey        string
	AnalysisModel string
	ImageModel    string
}

// Client holds one long-lived genai client shared by both collaborators.
type Client struct {
	genai   *genai.Client
	cfg     Config
	fetcher *ai.Fetcher
	logger  *slog.Logger
}

var (
	_ ai.Analyzer       = (*Client)(nil)
	_ ai.ImageGenerator = (*Client)(nil)
)

// New connects with an API key. It fails fast on an image model that would
// reject every try-on request.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if needsResponseModalities(cfg.ImageModel) {
		return nil, fmt.Errorf("%w: %s", ErrImageModel, cfg.ImageModel)
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Client{genai: gc, cfg: cfg, fetcher: ai.NewFetcher(), logger: logger}, nil
}

func (c *Client) Close() error {
	return c.genai.Close()
}

// needsResponseModalities reports whether model is one of the
// *-image-generation previews that return text only unless IMAGE is
// requested explicitly.
func needsResponseModalities(model string) bool {
	return strings.Contains(strings.ToLower(model), "image-generation")
}

// analysisSchema constrains the model to the three profile fields.
var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"bodyShape":    {Type: genai.TypeString},
		"skinTone":     {Type: genai.TypeString},
		"colorPalette": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"bodyShape", "skinTone", "colorPalette"},
}

func (c *Client) AnalyzePhoto(ctx context.Context, photoURL string) (*ai.Analysis, error) {
	photo, err := c.fetcher.Fetch(ctx, photoURL)
	if err != nil {
		return nil, fmt.Errorf("gemini: analyze: %w", err)
	}

	m := c.genai.GenerativeModel(c.cfg.AnalysisModel)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = analysisSchema

	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: photo.MIMEType, Data: photo.Data},
		genai.Text(ai.AnalysisPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: analyze: %w", err)
	}
	return parseAnalysis(resp)
}

// GenerateTryOn sends the prompt together with the user's photo and the
// model's reference image and returns the first image part of the answer.
func (c *Client) GenerateTryOn(ctx context.Context, req ai.TryOnRequest) (*ai.Image, error) {
	parts := []genai.Part{genai.Text(ai.TryOnPrompt(req.FabricDescription))}

	for _, url := range []string{req.UserPhotoURL, req.ModelImageURL} {
		if url == "" {
			continue
		}
		img, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("gemini: try-on reference: %w", err)
		}
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}

	resp, err := c.genai.GenerativeModel(c.cfg.ImageModel).GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: try-on: %w", err)
	}

	img, err := firstImage(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("try-on image generated",
		slog.String("mimeType", img.MIMEType),
		slog.Int("bytes", len(img.Data)),
	)
	return img, nil
}

func candidateParts(resp *genai.GenerateContentResponse) ([]genai.Part, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrNoCandidates
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, ErrNoCandidates
	}
	return content.Parts, nil
}

func parseAnalysis(resp *genai.GenerateContentResponse) (*ai.Analysis, error) {
	parts, err := candidateParts(resp)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response", ai.ErrMalformedAnalysis)
	}

	var raw struct {
		BodyShape    string   `json:"bodyShape"`
		SkinTone     string   `json:"skinTone"`
		ColorPalette []string `json:"colorPalette"`
	}
	if err := json.Unmarshal([]byte(text.String()), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrMalformedAnalysis, err)
	}
	return ai.NewAnalysis(raw.BodyShape, raw.SkinTone, raw.ColorPalette)
}

func firstImage(resp *genai.GenerateContentResponse) (*ai.Image, error) {
	parts, err := candidateParts(resp)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if b, ok := p.(genai.Blob); ok && len(b.Data) > 0 {
			mime := b.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &ai.Image{Data: b.Data, MIMEType: mime}, nil
		}
	}
	return nil, ErrNoImage
}
