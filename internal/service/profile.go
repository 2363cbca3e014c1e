package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/fitting-room/internal/ai"
	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// DefaultAITimeout bounds a photo analysis when none is configured.
const DefaultAITimeout = 60 * time.Second

// PendingResumer re-dispatches a user's pending trials once they have a
// usable photo.
type PendingResumer interface {
	ResumePending(ctx context.Context, userID string) (int, error)
}

// ProfileService reads and edits the caller's profile and runs photo
// analysis. Any change that leaves the user with a usable photo resumes
// their waiting trials.
type ProfileService struct {
	users    repository.UserRepository
	stats    repository.StatsRepository
	analyzer ai.Analyzer
	resumer  PendingResumer
	origin   imageref.Origin
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProfileService returns a ProfileService. A non-positive timeout falls
// back to DefaultAITimeout for each analysis call.
func NewProfileService(
	users repository.UserRepository,
	stats repository.StatsRepository,
	analyzer ai.Analyzer,
	resumer PendingResumer,
	origin imageref.Origin,
	timeout time.Duration,
	logger *slog.Logger,
) *ProfileService {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	return &ProfileService{
		users:    users,
		stats:    stats,
		analyzer: analyzer,
		resumer:  resumer,
		origin:   origin,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *ProfileService) Stats(ctx context.Context, userID string) (model.UserStats, error) {
	st, err := s.stats.UserStats(ctx, userID)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("counting user stats: %w", err)
	}
	return st, nil
}

// Update applies a partial profile change. The role can never be changed
// this way. An empty photo URL removes the photo; any other photo must come
// from the trusted origin, and setting one resumes trials that were waiting
// for it.
func (s *ProfileService) Update(ctx context.Context, userID string, patch model.UserPatch) (*model.User, error) {
	patch.Role = nil

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "name must not be empty")
		}
		patch.Name = &name
	}
	if patch.PhotoURL != nil {
		photo := strings.TrimSpace(*patch.PhotoURL)
		if photo != "" && !s.origin.Allows(photo) {
			return nil, s.untrusted("photoUrl")
		}
		patch.PhotoURL = &photo
	}
	if patch.BodyShape != nil && !patch.BodyShape.Valid() {
		return nil, apperror.ValidationFailed("bodyShape", fmt.Sprintf("unknown body shape %q", *patch.BodyShape))
	}
	if patch.SkinTone != nil && !patch.SkinTone.Valid() {
		return nil, apperror.ValidationFailed("skinTone", fmt.Sprintf("unknown skin tone %q", *patch.SkinTone))
	}

	user, err := s.users.UpdateUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}

	if s.origin.Usable(patch.PhotoURL) {
		s.resume(ctx, userID)
	}
	return user, nil
}

// AnalyzePhoto classifies the photo, stores the result together with the
// photo on the user and resumes any trials that were waiting for a photo.
func (s *ProfileService) AnalyzePhoto(ctx context.Context, userID, photoURL string) (*ai.Analysis, error) {
	photoURL = strings.TrimSpace(photoURL)
	if photoURL == "" {
		return nil, apperror.ValidationFailed("photoUrl", "photo URL is required")
	}
	if !s.origin.Allows(photoURL) {
		return nil, s.untrusted("photoUrl")
	}

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	analysis, err := s.analyzer.AnalyzePhoto(actx, photoURL)
	if err != nil {
		s.logger.Error("photo analysis failed",
			slog.String("userID", userID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("photo analysis", err)
	}

	_, err = s.users.UpdateUser(ctx, userID, model.UserPatch{
		PhotoURL:     &photoURL,
		BodyShape:    &analysis.BodyShape,
		SkinTone:     &analysis.SkinTone,
		ColorPalette: nonNilPalette(analysis.ColorPalette),
	})
	if err != nil {
		return nil, fmt.Errorf("storing analysis: %w", err)
	}

	s.logger.Info("photo analyzed",
		slog.String("userID", userID),
		slog.String("bodyShape", string(analysis.BodyShape)),
		slog.String("skinTone", string(analysis.SkinTone)),
		slog.Duration("duration", time.Since(start)),
	)

	s.resume(ctx, userID)
	return analysis, nil
}

func (s *ProfileService) resume(ctx context.Context, userID string) {
	if s.resumer == nil {
		return
	}
	n, err := s.resumer.ResumePending(ctx, userID)
	if err != nil {
		s.logger.Warn("could not resume pending trials",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		s.logger.Info("resumed pending trials", slog.String("userID", userID), slog.Int("count", n))
	}
}

func (s *ProfileService) untrusted(field string) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("image must be hosted on %s", s.origin))
}

// nonNilPalette makes an empty analysis palette clear the stored one
// instead of leaving it untouched.
func nonNilPalette(p []string) []string {
	if p == nil {
		return []string{}
	}
	return p
}
