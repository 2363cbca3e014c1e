package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/ai"
	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/config"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository/memory"
	"github.com/sakif/fitting-room/internal/service"
)

const (
	secret  = "test-secret-at-least-16"
	trusted = "https://firebasestorage.googleapis.com/v0/b/app/o/"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAI struct{}

func (fakeAI) AnalyzePhoto(context.Context, string) (*ai.Analysis, error) {
	return &ai.Analysis{BodyShape: model.BodyShapeApple, SkinTone: model.SkinToneDeep, ColorPalette: []string{"gold"}}, nil
}

func (fakeAI) GenerateTryOn(context.Context, ai.TryOnRequest) (*ai.Image, error) {
	return &ai.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}, nil
}

type testServer struct {
	t     *testing.T
	srv   *Server
	store *memory.Store
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Config{
		Port:               0,
		StoreDriver:        config.StoreMemory,
		SeedCatalog:        true,
		TrustedImageOrigin: config.DefaultTrustedImageOrigin,
		AI:                 config.AIConfig{Provider: config.AIProviderRemote, Timeout: time.Second},
		Images:             config.ImageConfig{Store: config.ImageStoreDataURI},
		TryOn:              config.TryOnConfig{Workers: 2, QueueSize: 16, TaskTimeout: time.Second},
		Limits:             config.RateLimitConfig{AIPerMinute: 60, AIBurst: 20},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: secret})
	require.NoError(t, err)

	store := memory.New()
	srv, err := New(cfg, Deps{Store: store, Verifier: verifier, Analyzer: fakeAI{}, Generator: fakeAI{}}, discard)
	require.NoError(t, err)

	require.NoError(t, srv.startBackground())
	t.Cleanup(srv.stopBackground)

	return &testServer{t: t, srv: srv, store: store}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.SignHS256(secret, subject, "", "", time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rr, req)
	return rr
}

// signUp syncs a user and returns their bearer token.
func (ts *testServer) signUp(subject string) string {
	ts.t.Helper()
	tok := token(ts.t, subject)
	body := map[string]any{"externalSubject": subject, "email": subject + "@example.test", "name": subject}
	rr := ts.do(http.MethodPost, "/api/auth/sync", tok, body)
	require.Equal(ts.t, http.StatusCreated, rr.Code, rr.Body.String())
	return tok
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func TestAuthBoundaries(t *testing.T) {
	ts := newTestServer(t, nil)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/models", "", nil).Code, "catalog is public")

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/user/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/user/profile", "garbage", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/user/profile", token(t, "never-synced"), nil).Code)

	tok := ts.signUp("ada")
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/user/profile", tok, nil).Code)

	t.Run("sync with someone else's token is forbidden", func(t *testing.T) {
		rr := ts.do(http.MethodPost, "/api/auth/sync", tok, map[string]any{"externalSubject": "mallory", "email": "m@example.test", "name": "M"})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("non-admin is forbidden whatever the payload", func(t *testing.T) {
		for _, body := range []any{
			nil,
			`{"broken":`,
			map[string]any{"name": "X", "imageUrl": trusted + "x.jpg", "category": "casual"},
		} {
			assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/admin/models", tok, body).Code)
			assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/admin/fabrics", tok, body).Code)
		}
		assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/stats", tok, nil).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/orders", tok, nil).Code)
	})

	t.Run("admin can manage the catalog", func(t *testing.T) {
		_, err := service.NewIdentityService(ts.store, imageref.MustParseOrigin(config.DefaultTrustedImageOrigin), discard).Promote(context.Background(), "ada")
		require.NoError(t, err)

		rr := ts.do(http.MethodPost, "/api/admin/models", tok, map[string]any{
			"name": "Capsule Coat", "imageUrl": trusted + "coat.jpg", "category": "formal", "bodyShapes": []string{"apple"},
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		st := decode[model.Stats](t, ts.do(http.MethodGet, "/api/admin/stats", tok, nil))
		assert.Equal(t, 9, st.TotalModels, "8 seeded plus one")
		assert.Equal(t, 8, st.TotalFabrics)
	})
}

func TestTryOnEndToEnd(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.signUp("grace")

	models := decode[[]model.Model](t, ts.do(http.MethodGet, "/api/models", "", nil))
	fabrics := decode[[]model.Fabric](t, ts.do(http.MethodGet, "/api/fabrics?sort=price_asc", "", nil))
	require.Len(t, models, 8)
	require.Len(t, fabrics, 8)
	assert.Equal(t, 38, fabrics[0].Price)

	body := map[string]any{
		"modelIds":  []string{models[0].ID, models[1].ID},
		"fabricIds": []string{fabrics[0].ID},
	}
	rr := ts.do(http.MethodPost, "/api/trials/generate", tok, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	trials := decode[[]model.Trial](t, rr)
	require.Len(t, trials, 2)

	// No photo yet: the trials wait.
	time.Sleep(20 * time.Millisecond)
	got := decode[model.Trial](t, ts.do(http.MethodGet, "/api/trials/"+trials[0].ID, tok, nil))
	assert.Equal(t, model.TrialPending, got.Status)

	// Analyzing a photo stores it and resumes the waiting trials.
	rr = ts.do(http.MethodPost, "/api/ai/analyze-photo", tok, map[string]string{"photoUrl": trusted + "grace.jpg"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Eventually(t, func() bool {
		list := decode[[]model.Trial](t, ts.do(http.MethodGet, "/api/trials?status=completed", tok, nil))
		return len(list) == 2
	}, 2*time.Second, 10*time.Millisecond)

	got = decode[model.Trial](t, ts.do(http.MethodGet, "/api/trials/"+trials[0].ID, tok, nil))
	assert.True(t, strings.HasPrefix(got.ImageURL, "data:image/png;base64,"))

	rr = ts.do(http.MethodPost, "/api/cart", tok, map[string]any{"trialId": got.ID, "modelId": got.ModelID, "fabricId": got.FabricID, "quantity": 3})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = ts.do(http.MethodPost, "/api/orders/checkout", tok, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 3*38, decode[model.Order](t, rr).TotalAmount)
}

func TestAIRoutesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Limits = config.RateLimitConfig{AIPerMinute: 1, AIBurst: 1}
	})
	tok := ts.signUp("lin")
	photo := map[string]string{"photoUrl": trusted + "lin.jpg"}

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/ai/analyze-photo", tok, photo).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodPost, "/api/ai/analyze-photo", tok, photo).Code)

	other := ts.signUp("max")
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/ai/analyze-photo", other, photo).Code, "limits are per user")
}

func TestAdminSubjectsAreGrantedOnSync(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Identity.AdminSubjects = []string{"root"}
	})

	root := ts.signUp("root")
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/admin/stats", root, nil).Code)

	other := ts.signUp("guest")
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/stats", other, nil).Code)
}
