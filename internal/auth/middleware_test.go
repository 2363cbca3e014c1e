package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
)

type fakeUsers map[string]*model.User

func (f fakeUsers) GetUserByExternalID(_ context.Context, sub string) (*model.User, error) {
	if sub == "broken" {
		return nil, errors.New("disk on fire")
	}
	u, ok := f[sub]
	if !ok {
		return nil, apperror.NotFound("user", sub)
	}
	return u, nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromContext(r.Context())
	role, _ := RoleFromContext(r.Context())
	sub, _ := SubjectFromContext(r.Context())
	_, _ = io.WriteString(w, id+"|"+string(role)+"|"+sub)
}

func TestRequireAuth(t *testing.T) {
	v := newTestVerifier(t)
	users := fakeUsers{
		"sub-alice": {ID: "u-alice", ExternalID: "sub-alice", Role: model.RoleUser},
		"sub-admin": {ID: "u-admin", ExternalID: "sub-admin", Role: model.RoleAdmin},
	}
	h := RequireAuth(v, users, discard)(http.HandlerFunc(echoIdentity))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + mustSign(t, "sub-alice", time.Hour), http.StatusOK, "u-alice|user|sub-alice"},
		{"lowercase scheme", "bearer " + mustSign(t, "sub-admin", time.Hour), http.StatusOK, "u-admin|admin|sub-admin"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + mustSign(t, "sub-alice", -time.Minute), http.StatusUnauthorized, ""},
		{"unknown user", "Bearer " + mustSign(t, "sub-ghost", time.Hour), http.StatusUnauthorized, ""},
		{"store failure", "Bearer " + mustSign(t, "broken", time.Hour), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(echoIdentity))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/models", nil)
	req = req.WithContext(WithUser(req.Context(), "u1", model.RoleUser))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/models", nil)
	req = req.WithContext(WithUser(req.Context(), "u2", model.RoleAdmin))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalSubject(t *testing.T) {
	v := newTestVerifier(t)
	h := OptionalSubject(v)(http.HandlerFunc(echoIdentity))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sync", nil)
	req.Header.Set("Authorization", "Bearer "+mustSign(t, "new-sub", time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "||new-sub", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/auth/sync", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "||", rec.Body.String())
}
