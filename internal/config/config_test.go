package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired sets the minimum environment for Load to succeed.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IDENTITY_JWT_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("GEMINI_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, DefaultTrustedImageOrigin, cfg.TrustedImageOrigin)
	assert.Equal(t, AIProviderGemini, cfg.AI.Provider)
	assert.Equal(t, ImageStoreDataURI, cfg.Images.Store)
	assert.Equal(t, 4, cfg.TryOn.Workers)
	assert.Equal(t, 60*time.Second, cfg.TryOn.TaskTimeout)
	assert.Equal(t, time.Minute, cfg.TryOn.ResumeInterval)
	assert.Equal(t, "gemini-3-pro-image-preview", cfg.AI.ImageModel)
	assert.Empty(t, cfg.Identity.AdminSubjects)
	assert.True(t, cfg.SeedCatalog)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("AI_TIMEOUT", "15s")
	t.Setenv("SEED_CATALOG", "false")
	t.Setenv("ADMIN_SUBJECTS", " ops-1, ,ops-2 ")
	t.Setenv("TRYON_RESUME_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.False(t, cfg.SeedCatalog)
	assert.Equal(t, []string{"ops-1", "ops-2"}, cfg.Identity.AdminSubjects)
	assert.Zero(t, cfg.TryOn.ResumeInterval)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"malformed port", map[string]string{"PORT": "eighty"}},
		{"unknown store driver", map[string]string{"STORE_DRIVER": "postgres"}},
		{"plain http origin", map[string]string{"TRUSTED_IMAGE_ORIGIN": "http://insecure.test"}},
		{"s3 without bucket", map[string]string{"IMAGE_STORE": "s3"}},
		{"remote without url", map[string]string{"AI_PROVIDER": "remote"}},
		{"malformed timeout", map[string]string{"AI_TIMEOUT": "soon"}},
		{"zero workers", map[string]string{"TRYON_WORKERS": "0"}},
		{"no identity key", map[string]string{"IDENTITY_JWT_SECRET": ""}},
		{"negative resume interval", map[string]string{"TRYON_RESUME_INTERVAL": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadBase_NeedsNoServerSecrets(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/other.db")

	_, err := Load()
	require.Error(t, err, "the server still needs its secrets")

	cfg, err := LoadBase()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, DefaultTrustedImageOrigin, cfg.TrustedImageOrigin)

	t.Run("still checks the shared settings", func(t *testing.T) {
		t.Setenv("TRUSTED_IMAGE_ORIGIN", "http://insecure.test")
		_, err := LoadBase()
		assert.Error(t, err)
	})
}
