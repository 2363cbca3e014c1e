package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
)

// contextKey is unexported so only this package can read or write the
// identity values it stores in a request context.
type contextKey string

const (
	userIDKey  contextKey = "userID"
	roleKey    contextKey = "role"
	subjectKey contextKey = "subject"
)

// TokenVerifier turns a bearer token into the external subject it names.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserLookup resolves an external subject to the stored user.
type UserLookup interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
}

// RequireAuth rejects the request with 401 unless it carries a valid bearer
// token whose subject belongs to a synced user. On success the user's id,
// role and subject are stored in the context.
func RequireAuth(tokens TokenVerifier, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "no token provided")
				return
			}

			subject, err := tokens.Verify(raw)
			if err != nil {
				logger.Debug("bearer token rejected", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			user, err := users.GetUserByExternalID(r.Context(), subject)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					writeAuthError(w, http.StatusUnauthorized, "unauthorized", "user not found")
					return
				}
				logger.Error("resolving user for token",
					slog.String("subject", subject),
					slog.String("error", err.Error()),
				)
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}

			ctx := WithUser(r.Context(), user.ID, user.Role)
			ctx = context.WithValue(ctx, subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth. Non-admins get 403 before the
// handler sees the request body.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := RoleFromContext(r.Context()); role != model.RoleAdmin {
			writeAuthError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OptionalSubject records the subject of a valid bearer token without
// requiring that a user exists for it. Used by identity sync, which is how
// users come to exist in the first place. Missing or invalid tokens pass
// through anonymously.
func OptionalSubject(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if subject, err := tokens.Verify(raw); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), subjectKey, subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a context carrying an authenticated user.
func WithUser(ctx context.Context, userID string, role model.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func RoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey).(model.Role)
	return role, ok
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
