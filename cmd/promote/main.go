// Command promote grants the admin role to an existing user, found by
// identity-provider subject or email. It talks to the same SQLite database
// as the server:
//
//	promote -db data/fitting-room.db jane@example.com
//
// Only DB_PATH and TRUSTED_IMAGE_ORIGIN are read from the environment; the
// server's identity and AI secrets are not needed. The in-memory store lives
// inside the server process, so admins there come from ADMIN_SUBJECTS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sakif/fitting-room/internal/config"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/repository/sqlite"
	"github.com/sakif/fitting-room/internal/service"
)

var errUsage = errors.New("usage")

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	err := run(os.Args[1:], os.Stderr, logger)
	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		logger.Error("promote failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer, logger *slog.Logger) error {
	cfg, err := config.LoadBase()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", cfg.DBPath, "path to the SQLite database")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: promote [-db path] <subject-or-email>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	return promote(*dbPath, cfg.TrustedImageOrigin, fs.Arg(0), logger)
}

func promote(dbPath, trustedOrigin, key string, logger *slog.Logger) error {
	origin, err := imageref.ParseOrigin(trustedOrigin)
	if err != nil {
		return fmt.Errorf("parsing trusted image origin: %w", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	user, err := service.NewIdentityService(db, origin, logger).Promote(context.Background(), key)
	if err != nil {
		return err
	}
	logger.Info("user promoted to admin",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}
