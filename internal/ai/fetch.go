package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	MaxImageBytes     = 10 << 20
	ImageFetchTimeout = 10 * time.Second
)

var ErrImageTooLarge = errors.New("ai: image exceeds size limit")

// Fetcher downloads reference images before they are handed to a model.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: ImageFetchTimeout},
		MaxBytes: MaxImageBytes,
	}
}

// Fetch returns the body and its sniffed content type.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ai: building image request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai: fetching image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ai: reading image: %w", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, ErrImageTooLarge
	}

	return &Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
}
