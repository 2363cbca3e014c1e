package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/fitting-room/internal/ai"
	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/imagestore"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
	"github.com/sakif/fitting-room/internal/tryon"
)

// A single generate call yields at most MaxModels × MaxFabrics trials.
const (
	MaxModels  = 4
	MaxFabrics = 4
)

// Dispatcher runs try-on jobs in the background. tryon.Pool implements it.
type Dispatcher interface {
	Submit(job tryon.Job) error
	Results() <-chan tryon.Result
}

// TrialStore is the part of the Entity Store the trial generator needs.
type TrialStore interface {
	repository.UserRepository
	repository.ModelRepository
	repository.FabricRepository
	repository.TrialRepository
}

// TrialService creates try-on trials and drives them to a terminal state.
//
// A trial is created pending and handed to the Dispatcher once its owner
// has a usable photo. Run consumes the dispatcher's results and performs
// the one pending to completed or failed transition. Between dispatch and
// that transition the trial id is held in an in-flight set, so a resume
// pass never queues the same trial twice while its result is on the way.
type TrialService struct {
	store      TrialStore
	dispatcher Dispatcher
	origin     imageref.Origin
	images     imagestore.Resolver
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewTrialService returns a service that queues work on dispatcher. Photos
// must come from origin before any job is queued for them.
func NewTrialService(store TrialStore, dispatcher Dispatcher, origin imageref.Origin, logger *slog.Logger) *TrialService {
	return &TrialService{
		store:      store,
		dispatcher: dispatcher,
		origin:     origin,
		logger:     logger,
		inflight:   make(map[string]struct{}),
	}
}

// WithImageResolver makes Get and List return renderable image URLs for
// stored references, e.g. presigned URLs for a private bucket.
func (s *TrialService) WithImageResolver(r imagestore.Resolver) *TrialService {
	s.images = r
	return s
}

// Generate creates one pending trial per (model, fabric) pair, models in the
// outer loop and fabrics in the inner one, both in caller order. It returns
// as soon as the trials exist; images are produced in the background for
// users whose photo is on the trusted origin.
//
// Every referenced model and fabric is resolved before anything is written,
// so a bad id creates zero trials.
func (s *TrialService) Generate(ctx context.Context, userID string, modelIDs, fabricIDs []string) ([]model.Trial, error) {
	if err := checkIDs("modelIds", "model", modelIDs, MaxModels); err != nil {
		return nil, err
	}
	if err := checkIDs("fabricIds", "fabric", fabricIDs, MaxFabrics); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	models := make([]*model.Model, len(modelIDs))
	for i, id := range modelIDs {
		if models[i], err = s.store.GetModel(ctx, id); err != nil {
			return nil, err
		}
	}
	fabrics := make([]*model.Fabric, len(fabricIDs))
	for i, id := range fabricIDs {
		if fabrics[i], err = s.store.GetFabric(ctx, id); err != nil {
			return nil, err
		}
	}

	trials := make([]model.Trial, 0, len(models)*len(fabrics))
	for _, m := range models {
		for _, f := range fabrics {
			t := &model.Trial{UserID: user.ID, ModelID: m.ID, FabricID: f.ID}
			if err := s.store.CreateTrial(ctx, t); err != nil {
				s.logger.Error("failed to create trial",
					slog.String("userID", user.ID),
					slog.String("error", err.Error()),
				)
				return nil, fmt.Errorf("creating trial: %w", err)
			}
			trials = append(trials, *t)
		}
	}

	s.logger.Info("trials created",
		slog.String("userID", user.ID),
		slog.Int("models", len(models)),
		slog.Int("fabrics", len(fabrics)),
		slog.Int("trials", len(trials)),
	)

	if !s.origin.Usable(user.PhotoURL) {
		s.logger.Info("trials waiting for a usable photo", slog.String("userID", user.ID))
		return trials, nil
	}

	i := 0
	for _, m := range models {
		for _, f := range fabrics {
			id := trials[i].ID
			i++
			switch err := s.dispatch(id, *user.PhotoURL, m, f); {
			case err == nil, errors.Is(err, tryon.ErrInFlight):
			case errors.Is(err, tryon.ErrQueueFull):
				// Fresh trials fail fast; resumed ones wait for the next pass.
				s.logger.Warn("try-on queue full", slog.String("trialID", id))
				s.finish(context.WithoutCancel(ctx), tryon.Result{TrialID: id, Err: err})
			default:
				s.logger.Warn("could not queue try-on",
					slog.String("trialID", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return trials, nil
}

func checkIDs(field, what string, ids []string, max int) error {
	if len(ids) == 0 {
		return apperror.ValidationFailed(field, fmt.Sprintf("at least one %s is required", what))
	}
	if len(ids) > max {
		return apperror.ValidationFailed(field, fmt.Sprintf("at most %d %ss are allowed", max, what))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return apperror.ValidationFailed(field, fmt.Sprintf("%s ids must not be empty", what))
		}
		if _, dup := seen[id]; dup {
			return apperror.ValidationFailed(field, fmt.Sprintf("duplicate %s id %s", what, id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// dispatch queues the image job for a trial and marks it in flight until
// finish runs. A trial already in flight is not submitted again.
func (s *TrialService) dispatch(trialID, photoURL string, m *model.Model, f *model.Fabric) error {
	if !s.claim(trialID) {
		return tryon.ErrInFlight
	}
	return s.submit(trialID, photoURL, m, f)
}

func (s *TrialService) claim(trialID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[trialID]; ok {
		return false
	}
	s.inflight[trialID] = struct{}{}
	return true
}

// submit hands a claimed trial to the dispatcher, releasing the claim when
// the job was not accepted.
func (s *TrialService) submit(trialID, photoURL string, m *model.Model, f *model.Fabric) error {
	err := s.dispatcher.Submit(tryon.Job{
		TrialID: trialID,
		Request: ai.TryOnRequest{
			UserPhotoURL:      photoURL,
			ModelImageURL:     m.ImageURL,
			FabricDescription: f.PromptDescription(),
		},
	})
	if err != nil {
		s.release(trialID)
	}
	return err
}

func (s *TrialService) release(trialID string) {
	s.mu.Lock()
	delete(s.inflight, trialID)
	s.mu.Unlock()
}

// Run performs the terminal transition for every finished job until ctx is
// done or the dispatcher closes its results.
func (s *TrialService) Run(ctx context.Context) {
	results := s.dispatcher.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			s.finish(ctx, res)
		}
	}
}

func (s *TrialService) finish(ctx context.Context, res tryon.Result) {
	status, image := model.TrialCompleted, res.ImageURL
	if res.Err != nil {
		status, image = model.TrialFailed, ""
	}

	_, err := s.store.FinishTrial(ctx, res.TrialID, status, image)
	s.release(res.TrialID)
	switch {
	case err == nil && res.Err == nil:
		s.logger.Info("trial completed",
			slog.String("trialID", res.TrialID),
			slog.Duration("duration", res.Duration),
		)
	case err == nil:
		s.logger.Warn("trial failed",
			slog.String("trialID", res.TrialID),
			slog.Duration("duration", res.Duration),
			slog.String("error", res.Err.Error()),
		)
	case errors.Is(err, apperror.ErrConflict):
		s.logger.Debug("trial already finished", slog.String("trialID", res.TrialID))
	default:
		s.logger.Error("failed to finish trial",
			slog.String("trialID", res.TrialID),
			slog.String("error", err.Error()),
		)
	}
}

// ResumePending re-queues pending trials of userID, or of every user when
// userID is empty. Trials whose owner still lacks a usable photo are left
// alone; trials whose model or fabric vanished are failed. When the queue
// fills up the pass stops and the remaining trials stay pending for the
// next one. It returns how many jobs were queued.
func (s *TrialService) ResumePending(ctx context.Context, userID string) (int, error) {
	pending, err := s.store.ListTrials(ctx, repository.ListOptions{UserID: userID, Status: model.TrialPending})
	if err != nil {
		return 0, fmt.Errorf("listing pending trials: %w", err)
	}

	photos := make(map[string]string)
	queued := 0
	for _, t := range pending {
		photo, ok := photos[t.UserID]
		if !ok {
			user, err := s.store.GetUserByID(ctx, t.UserID)
			switch {
			case err == nil && s.origin.Usable(user.PhotoURL):
				photo = *user.PhotoURL
			case err != nil && !errors.Is(err, apperror.ErrNotFound):
				return queued, fmt.Errorf("loading trial owner: %w", err)
			}
			photos[t.UserID] = photo
		}
		if photo == "" {
			continue
		}

		m, mErr := s.store.GetModel(ctx, t.ModelID)
		f, fErr := s.store.GetFabric(ctx, t.FabricID)
		if mErr != nil || fErr != nil {
			s.finish(ctx, tryon.Result{TrialID: t.ID, Err: errors.Join(mErr, fErr)})
			continue
		}

		if !s.claim(t.ID) {
			continue
		}
		// The listing may be stale: a result can land between it and the
		// claim.
		if cur, err := s.store.GetTrial(ctx, t.ID); err != nil || cur.Status != model.TrialPending {
			s.release(t.ID)
			continue
		}

		switch err := s.submit(t.ID, photo, m, f); {
		case err == nil:
			queued++
		case errors.Is(err, tryon.ErrInFlight):
		case errors.Is(err, tryon.ErrQueueFull):
			s.logger.Info("try-on queue full, deferring the rest",
				slog.Int("queued", queued),
				slog.Int("pending", len(pending)),
			)
			return queued, nil
		default:
			s.logger.Warn("could not queue try-on",
				slog.String("trialID", t.ID),
				slog.String("error", err.Error()),
			)
			return queued, nil
		}
	}
	return queued, nil
}

// ResumeEvery runs ResumePending for every user each interval until ctx is
// done. A non-positive interval returns at once.
func (s *TrialService) ResumeEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ResumePending(ctx, "")
			if err != nil {
				s.logger.Warn("could not resume pending trials", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Info("resumed pending trials", slog.Int("count", n))
			}
		}
	}
}

// Get returns one of userID's trials. Someone else's trial is NotFound.
func (s *TrialService) Get(ctx context.Context, userID, id string) (*model.Trial, error) {
	t, err := s.store.GetTrial(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, apperror.NotFound("trial", id)
	}
	s.resolve(ctx, t)
	return t, nil
}

// List returns userID's trials in creation order, optionally filtered by
// status.
func (s *TrialService) List(ctx context.Context, userID string, status model.TrialStatus) ([]model.Trial, error) {
	switch status {
	case "", model.TrialPending, model.TrialCompleted, model.TrialFailed:
	default:
		return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}
	trials, err := s.store.ListTrials(ctx, repository.ListOptions{UserID: userID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("listing trials: %w", err)
	}
	for i := range trials {
		s.resolve(ctx, &trials[i])
	}
	return trials, nil
}

// resolve swaps the stored image reference for a renderable URL. On error
// the stored reference is kept.
func (s *TrialService) resolve(ctx context.Context, t *model.Trial) {
	if s.images == nil || t.ImageURL == "" {
		return
	}
	url, err := s.images.Resolve(ctx, t.ImageURL)
	if err != nil {
		s.logger.Warn("could not resolve trial image",
			slog.String("trialID", t.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	t.ImageURL = url
}
