package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository/memory"
	"github.com/sakif/fitting-room/internal/tryon"
)

const trustedPhoto = "https://firebasestorage.googleapis.com/v0/b/app/o/me.jpg"

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	origin  = imageref.MustParseOrigin("https://firebasestorage.googleapis.com")
)

// fakeDispatcher records submitted jobs and lets tests push results by hand.
// A positive capacity makes it report a full queue once that many jobs are
// held; drain empties it.
type fakeDispatcher struct {
	mu        sync.Mutex
	jobs      []tryon.Job
	capacity  int
	submitErr error
	results   chan tryon.Result
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{results: make(chan tryon.Result, 32)}
}

func (f *fakeDispatcher) Submit(job tryon.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	if f.capacity > 0 && len(f.jobs) >= f.capacity {
		return tryon.ErrQueueFull
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeDispatcher) drain() []tryon.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.jobs
	f.jobs = nil
	return out
}

func (f *fakeDispatcher) Results() <-chan tryon.Result { return f.results }

func (f *fakeDispatcher) submitted() []tryon.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tryon.Job, len(f.jobs))
	copy(out, f.jobs)
	return out
}

// fixture is a memory store seeded with one user, three models and three
// fabrics priced 20, 30 and 50.
type fixture struct {
	store   *memory.Store
	user    *model.User
	models  []*model.Model
	fabrics []*model.Fabric
}

func newFixture(t *testing.T, photo *string) *fixture {
	t.Helper()
	ctx := context.Background()
	fx := &fixture{store: memory.New()}

	fx.user = &model.User{ExternalID: "sub-1", Email: "a@example.test", Name: "Ada", PhotoURL: photo}
	require.NoError(t, fx.store.CreateUser(ctx, fx.user))

	for i, name := range []string{"Wrap Dress", "Blazer", "Kurta"} {
		m := &model.Model{
			Name:       name,
			ImageURL:   "https://firebasestorage.googleapis.com/m" + string(rune('0'+i)) + ".jpg",
			Category:   model.CategoryCasual,
			BodyShapes: []model.BodyShape{model.BodyShapePear},
		}
		require.NoError(t, fx.store.CreateModel(ctx, m))
		fx.models = append(fx.models, m)
	}
	for i, price := range []int{20, 30, 50} {
		f := &model.Fabric{
			Name:      "Fabric " + string(rune('A'+i)),
			ImageURL:  "https://firebasestorage.googleapis.com/f.jpg",
			Texture:   model.TextureSilk,
			SkinTones: []model.SkinTone{model.SkinToneOlive},
			Price:     price,
		}
		require.NoError(t, fx.store.CreateFabric(ctx, f))
		fx.fabrics = append(fx.fabrics, f)
	}
	return fx
}

func (fx *fixture) modelIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fx.models[i].ID
	}
	return ids
}

func (fx *fixture) fabricIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fx.fabrics[i].ID
	}
	return ids
}

func strPtr(s string) *string { return &s }
