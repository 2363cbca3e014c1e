// Package service holds the business rules of the fitting room.
//
// Handlers parse HTTP and call services with plain values; services validate,
// enforce ownership and orchestrate the store and the AI collaborators.
// Every failure is an *apperror.AppError or wraps one, so handlers can map it
// to a status code without knowing where it came from.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// SyncInput is what the client learned from the identity provider.
type SyncInput struct {
	ExternalSubject string
	Email           string
	Name            string
	PhotoURL        *string
}

// IdentityService maps identity-provider subjects to users.
type IdentityService struct {
	users  repository.UserRepository
	origin imageref.Origin
	admins map[string]struct{}
	logger *slog.Logger
}

// NewIdentityService returns a service that keeps sync photos only when they
// come from origin.
func NewIdentityService(users repository.UserRepository, origin imageref.Origin, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, origin: origin, logger: logger}
}

// WithAdminSubjects grants the admin role to these subjects the next time
// they sync with a verified token.
func (s *IdentityService) WithAdminSubjects(subjects ...string) *IdentityService {
	s.admins = make(map[string]struct{}, len(subjects))
	for _, sub := range subjects {
		if sub = strings.TrimSpace(sub); sub != "" {
			s.admins[sub] = struct{}{}
		}
	}
	return s
}

// Sync returns the user for in.ExternalSubject, creating it on first sight.
// An existing user is returned unchanged: later email or name changes at the
// identity provider are not copied over.
//
// tokenSubject is the subject of the bearer token that accompanied the call,
// or "" when there was none. A token for someone else is Forbidden.
//
// A subject listed with WithAdminSubjects becomes an admin here, but only
// when the call carried that subject's own token.
//
// The returned bool reports whether the user was created by this call.
func (s *IdentityService) Sync(ctx context.Context, in SyncInput, tokenSubject string) (*model.User, bool, error) {
	in.ExternalSubject = strings.TrimSpace(in.ExternalSubject)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	switch {
	case in.ExternalSubject == "":
		return nil, false, apperror.ValidationFailed("externalSubject", "external subject is required")
	case in.Email == "":
		return nil, false, apperror.ValidationFailed("email", "email is required")
	case in.Name == "":
		return nil, false, apperror.ValidationFailed("name", "name is required")
	}
	if tokenSubject != "" && tokenSubject != in.ExternalSubject {
		return nil, false, apperror.Forbidden("token does not belong to this subject")
	}

	_, listed := s.admins[in.ExternalSubject]
	grantAdmin := listed && tokenSubject != ""

	existing, err := s.users.GetUserByExternalID(ctx, in.ExternalSubject)
	if err == nil {
		if grantAdmin && existing.Role != model.RoleAdmin {
			return s.grantAdmin(ctx, existing)
		}
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up subject: %w", err)
	}

	user := &model.User{
		ExternalID: in.ExternalSubject,
		Email:      in.Email,
		Name:       in.Name,
		Role:       model.RoleUser,
	}
	if grantAdmin {
		user.Role = model.RoleAdmin
	}
	// Provider avatars usually live off the trusted origin; they are
	// dropped rather than failing the sign-in.
	if s.origin.Usable(in.PhotoURL) {
		user.PhotoURL = model.Ptr(*in.PhotoURL)
	} else if in.PhotoURL != nil && *in.PhotoURL != "" {
		s.logger.Debug("ignoring untrusted sync photo", slog.String("subject", in.ExternalSubject))
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent sync for the same subject.
		if errors.Is(err, apperror.ErrConflict) {
			winner, getErr := s.users.GetUserByExternalID(ctx, in.ExternalSubject)
			if getErr != nil {
				return nil, false, fmt.Errorf("re-reading synced user: %w", getErr)
			}
			return winner, false, nil
		}
		s.logger.Error("failed to create user",
			slog.String("subject", in.ExternalSubject),
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("subject", user.ExternalID),
		slog.String("role", string(user.Role)),
	)
	return user, true, nil
}

func (s *IdentityService) grantAdmin(ctx context.Context, user *model.User) (*model.User, bool, error) {
	role := model.RoleAdmin
	updated, err := s.users.UpdateUser(ctx, user.ID, model.UserPatch{Role: &role})
	if err != nil {
		return nil, false, fmt.Errorf("granting admin role: %w", err)
	}
	s.logger.Info("admin role granted from configuration", slog.String("userID", updated.ID))
	return updated, false, nil
}

// Promote grants the admin role to the user identified by subject or email.
func (s *IdentityService) Promote(ctx context.Context, subjectOrEmail string) (*model.User, error) {
	key := strings.TrimSpace(subjectOrEmail)
	if key == "" {
		return nil, apperror.ValidationFailed("user", "subject or email is required")
	}

	user, err := s.users.GetUserByExternalID(ctx, key)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.users.GetUserByEmail(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	role := model.RoleAdmin
	updated, err := s.users.UpdateUser(ctx, user.ID, model.UserPatch{Role: &role})
	if err != nil {
		return nil, fmt.Errorf("promoting user: %w", err)
	}
	s.logger.Info("user promoted to admin", slog.String("userID", updated.ID))
	return updated, nil
}
