package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/model"
)

func TestNewAnalysis(t *testing.T) {
	a, err := NewAnalysis(" Hourglass", "OLIVE", []string{"navy", " ", "emerald "})
	require.NoError(t, err)
	assert.Equal(t, model.BodyShapeHourglass, a.BodyShape)
	assert.Equal(t, model.SkinToneOlive, a.SkinTone)
	assert.Equal(t, []string{"navy", "emerald"}, a.ColorPalette)

	_, err = NewAnalysis("triangle", "olive", nil)
	assert.True(t, errors.Is(err, ErrMalformedAnalysis))

	_, err = NewAnalysis("pear", "green", nil)
	assert.True(t, errors.Is(err, ErrMalformedAnalysis))
}

func TestTryOnPrompt(t *testing.T) {
	assert.Contains(t, TryOnPrompt("silk Royal Silk"), "wearing a silk Royal Silk outfit")
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write(pngHeader)
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher()
	img, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, pngHeader, img.Data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	small := &Fetcher{Client: srv.Client(), MaxBytes: 16}
	_, err = small.Fetch(context.Background(), srv.URL+"/big")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
