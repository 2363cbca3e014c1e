// Package imagestore persists generated try-on images.
//
// Put returns the reference that is written to the trial record. Resolve
// turns a stored reference into something a client can render right now;
// for most stores the two are the same string, but a private S3 bucket
// keeps an s3:// reference and signs a short-lived URL on every read.
package imagestore

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrEmptyImage is returned by Put for zero-length data.
var ErrEmptyImage = errors.New("imagestore: empty image")

// Store saves image bytes under a caller-chosen name and returns a reference
// suitable for a Trial's image field.
type Store interface {
	Put(ctx context.Context, name string, data []byte, mimeType string) (string, error)
	Resolver
}

// Resolver maps a stored image reference to a renderable URL. References
// it does not recognise come back unchanged.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// DataURI inlines images into the reference itself. Nothing is written
// anywhere, which suits development and the in-memory store.
type DataURI struct{}

func (DataURI) Put(_ context.Context, _ string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (DataURI) Resolve(_ context.Context, ref string) (string, error) {
	return ref, nil
}

// extension maps a MIME type to a file suffix for object keys.
func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
