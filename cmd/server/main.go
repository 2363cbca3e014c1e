// Package main is the entry point for the fitting-room API server.
//
// main only reads configuration and builds the concrete collaborators
// (store, identity verifier, AI provider, image store). Everything else
// lives in internal/server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/fitting-room/internal/ai/gemini"
	"github.com/sakif/fitting-room/internal/ai/remote"
	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/config"
	"github.com/sakif/fitting-room/internal/imagestore"
	"github.com/sakif/fitting-room/internal/repository"
	"github.com/sakif/fitting-room/internal/repository/memory"
	"github.com/sakif/fitting-room/internal/repository/sqlite"
	"github.com/sakif/fitting-room/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run builds the collaborators and blocks until the server stops. It is
// split from main so deferred cleanups run before exit.
func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// === 3. STORE ===
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	// === 4. IDENTITY ===
	var verifier *auth.Verifier
	if cfg.Identity.PublicKeyFile != "" {
		verifier, err = auth.NewVerifierFromFile(cfg.Identity.PublicKeyFile, cfg.Identity.JWTSecret, cfg.Identity.Audience, cfg.Identity.Issuer)
	} else {
		verifier, err = auth.NewVerifier(auth.VerifierConfig{
			Secret:   cfg.Identity.JWTSecret,
			Audience: cfg.Identity.Audience,
			Issuer:   cfg.Identity.Issuer,
		})
	}
	if err != nil {
		store.Close()
		return fmt.Errorf("identity verifier: %w", err)
	}

	deps := server.Deps{Store: store, Verifier: verifier}

	// === 5. AI PROVIDER ===
	switch cfg.AI.Provider {
	case config.AIProviderGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:        cfg.AI.GeminiAPIKey,
			AnalysisModel: cfg.AI.AnalysisModel,
			ImageModel:    cfg.AI.ImageModel,
		}, logger)
		if err != nil {
			store.Close()
			return fmt.Errorf("gemini client: %w", err)
		}
		defer client.Close()
		deps.Analyzer, deps.Generator = client, client
	case config.AIProviderRemote:
		client, err := remote.New(ctx, cfg.AI.RemoteURL, cfg.AI.RemoteToken)
		if err != nil {
			store.Close()
			return fmt.Errorf("remote try-on client: %w", err)
		}
		deps.Analyzer, deps.Generator = client, client
	default:
		store.Close()
		return fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}

	// === 6. IMAGE STORE ===
	if cfg.Images.Store == config.ImageStoreS3 {
		images, err := imagestore.NewS3(ctx, imagestore.S3Config{
			Region:        cfg.Images.AWSRegion,
			Bucket:        cfg.Images.S3Bucket,
			PublicBaseURL: cfg.Images.PublicBaseURL,
		})
		if err != nil {
			store.Close()
			return fmt.Errorf("s3 image store: %w", err)
		}
		deps.Images = images
	} else {
		deps.Images = imagestore.DataURI{}
	}

	// === 7. SERVE ===
	// Run owns the store from here on and closes it on shutdown.
	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start()
}

func openStore(cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.StoreDriver != config.StoreSQLite {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
