// Package remote talks to a self-hosted try-on service over JSON/HTTP.
//
// The service exposes two endpoints:
//
//	POST {base}/analyze  {"photoUrl": "..."}
//	  -> {"bodyShape": "...", "skinTone": "...", "colorPalette": [...]}
//	POST {base}/tryon    {"userPhotoUrl": "...", "modelImageUrl": "...", "fabricDescription": "..."}
//	  -> {"image": "<base64>", "mimeType": "image/png"}
//
// Requests carry a static bearer token when one is configured.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/fitting-room/internal/ai"
)

// maxResponseBytes bounds a try-on answer; base64 inflates images by a third.
const maxResponseBytes = 16 << 20

// Client implements both AI collaborators against the remote service.
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ ai.Analyzer       = (*Client)(nil)
	_ ai.ImageGenerator = (*Client)(nil)
)

// New builds a client for baseURL. When token is non-empty every request is
// authorized through an oauth2 static token source.
func New(ctx context.Context, baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("remote: base URL is required")
	}
	hc := http.DefaultClient
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

type analyzeRequest struct {
	PhotoURL string `json:"photoUrl"`
}

type analyzeResponse struct {
	BodyShape    string   `json:"bodyShape"`
	SkinTone     string   `json:"skinTone"`
	ColorPalette []string `json:"colorPalette"`
}

func (c *Client) AnalyzePhoto(ctx context.Context, photoURL string) (*ai.Analysis, error) {
	var out analyzeResponse
	if err := c.post(ctx, "/analyze", analyzeRequest{PhotoURL: photoURL}, &out); err != nil {
		return nil, err
	}
	return ai.NewAnalysis(out.BodyShape, out.SkinTone, out.ColorPalette)
}

type tryOnRequest struct {
	UserPhotoURL      string `json:"userPhotoUrl"`
	ModelImageURL     string `json:"modelImageUrl"`
	FabricDescription string `json:"fabricDescription"`
	Prompt            string `json:"prompt"`
}

type tryOnResponse struct {
	Image    string `json:"image"`
	MIMEType string `json:"mimeType"`
}

func (c *Client) GenerateTryOn(ctx context.Context, req ai.TryOnRequest) (*ai.Image, error) {
	var out tryOnResponse
	err := c.post(ctx, "/tryon", tryOnRequest{
		UserPhotoURL:      req.UserPhotoURL,
		ModelImageURL:     req.ModelImageURL,
		FabricDescription: req.FabricDescription,
		Prompt:            ai.TryOnPrompt(req.FabricDescription),
	}, &out)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("remote: decoding image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("remote: empty image in response")
	}
	mime := out.MIMEType
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return &ai.Image{Data: data, MIMEType: mime}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("remote: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("remote: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("remote: decoding %s response: %w", path, err)
	}
	return nil
}
