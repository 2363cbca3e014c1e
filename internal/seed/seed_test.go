package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLoad_OnlyIntoEmptyCatalog(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	loaded, err := Load(ctx, store, discard)
	require.NoError(t, err)
	assert.True(t, loaded)

	models, err := store.ListModels(ctx)
	require.NoError(t, err)
	fabrics, err := store.ListFabrics(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 8)
	assert.Len(t, fabrics, 8)
	assert.Equal(t, "Classic Summer Dress", models[0].Name)

	loaded, err = Load(ctx, store, discard)
	require.NoError(t, err)
	assert.False(t, loaded)

	models, err = store.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 8, "second load is a no-op")
}

func TestStarterCatalogIsValid(t *testing.T) {
	for _, m := range Models() {
		assert.True(t, m.Category.Valid(), m.Name)
		assert.NotEmpty(t, m.BodyShapes, m.Name)
		for _, b := range m.BodyShapes {
			assert.True(t, b.Valid(), m.Name)
		}
	}
	for _, f := range Fabrics() {
		assert.True(t, f.Texture.Valid(), f.Name)
		assert.GreaterOrEqual(t, f.Price, 0, f.Name)
		for _, s := range f.SkinTones {
			assert.True(t, s.Valid(), f.Name)
		}
	}

	poly := Fabrics()[5]
	assert.Equal(t, model.TexturePolyester, poly.Texture)
	assert.ElementsMatch(t, model.SkinTones, poly.SkinTones)
}
