// Package server is the composition root: it wires the store, services,
// handlers and background workers together and owns their lifecycle.
//
// Startup order: seed the catalog, start the try-on workers, start the
// result consumer, re-queue pending trials, then listen. Trials that did not
// fit in the queue are retried every TRYON_RESUME_INTERVAL. Shutdown runs in
// reverse: stop accepting requests, stop consuming results, stop the
// workers (queued jobs stay pending and are re-queued on the next start),
// close the store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/fitting-room/internal/ai"
	"github.com/sakif/fitting-room/internal/auth"
	"github.com/sakif/fitting-room/internal/config"
	"github.com/sakif/fitting-room/internal/handler"
	"github.com/sakif/fitting-room/internal/imageref"
	"github.com/sakif/fitting-room/internal/imagestore"
	"github.com/sakif/fitting-room/internal/middleware"
	"github.com/sakif/fitting-room/internal/repository"
	"github.com/sakif/fitting-room/internal/seed"
	"github.com/sakif/fitting-room/internal/service"
	"github.com/sakif/fitting-room/internal/tryon"
)

const shutdownTimeout = 30 * time.Second

// Deps are the collaborators built by main from the configuration. Images
// may be nil, in which case generated images are inlined as data URIs.
type Deps struct {
	Store     repository.Store
	Verifier  auth.TokenVerifier
	Analyzer  ai.Analyzer
	Generator ai.ImageGenerator
	Images    imagestore.Store
}

// Server owns the router and the background workers of one process.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	store   repository.Store
	pool    *tryon.Pool
	trials  *service.TrialService
	limiter *middleware.RateLimiter

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New builds the server. It does not start any goroutine; see Run.
func New(cfg config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	origin, err := imageref.ParseOrigin(cfg.TrustedImageOrigin)
	if err != nil {
		return nil, fmt.Errorf("parsing trusted image origin: %w", err)
	}
	if deps.Images == nil {
		deps.Images = imagestore.DataURI{}
	}

	pool := tryon.NewPool(deps.Generator, deps.Images, tryon.Config{
		Workers:     cfg.TryOn.Workers,
		QueueSize:   cfg.TryOn.QueueSize,
		TaskTimeout: cfg.TryOn.TaskTimeout,
	}, logger)

	limiter := middleware.NewRateLimiter(cfg.Limits.AIPerMinute, cfg.Limits.AIBurst, func(r *http.Request) string {
		if id, ok := auth.UserIDFromContext(r.Context()); ok {
			return "user:" + id
		}
		return "addr:" + r.RemoteAddr
	})

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   deps.Store,
		pool:    pool,
		trials:  service.NewTrialService(deps.Store, pool, origin, logger).WithImageResolver(deps.Images),
		limiter: limiter,
	}
	s.setupRoutes(deps, origin)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes mounts every endpoint.
//
//	POST   /api/auth/sync            optional bearer
//	GET    /api/models[/{id}]        public
//	GET    /api/fabrics[/{id}]       public
//	GET    /api/user/profile         user
//	PATCH  /api/user/profile         user
//	GET    /api/user/stats           user
//	POST   /api/ai/analyze-photo     user, rate limited
//	POST   /api/trials/generate      user, rate limited
//	GET    /api/trials[/{id}]        user
//	GET    /api/cart                 user
//	POST   /api/cart                 user
//	DELETE /api/cart/{id}            user
//	POST   /api/orders/checkout      user
//	GET    /api/orders[/{id}]        user
//	GET    /api/admin/stats          admin
//	GET    /api/admin/orders         admin
//	POST   /api/admin/models         admin
//	POST   /api/admin/fabrics        admin
func (s *Server) setupRoutes(deps Deps, origin imageref.Origin) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	aiTimeout := s.config.AI.Timeout
	identity := service.NewIdentityService(deps.Store, origin, s.logger).
		WithAdminSubjects(s.config.Identity.AdminSubjects...)
	profiles := service.NewProfileService(deps.Store, deps.Store, deps.Analyzer, s.trials, origin, aiTimeout, s.logger)
	catalog := service.NewCatalogService(deps.Store, origin, s.logger)
	carts := service.NewCartService(deps.Store, s.logger)
	orders := service.NewOrderService(deps.Store)

	authH := handler.NewAuthHandler(identity, s.logger)
	profileH := handler.NewProfileHandler(profiles, s.logger)
	catalogH := handler.NewCatalogHandler(catalog, s.logger)
	trialH := handler.NewTrialHandler(s.trials, s.logger)
	cartH := handler.NewCartHandler(carts, s.logger)
	orderH := handler.NewOrderHandler(orders, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.With(auth.OptionalSubject(deps.Verifier)).Post("/auth/sync", authH.HandleSync)

		r.Get("/models", catalogH.HandleListModels)
		r.Get("/models/{id}", catalogH.HandleGetModel)
		r.Get("/fabrics", catalogH.HandleListFabrics)
		r.Get("/fabrics/{id}", catalogH.HandleGetFabric)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.Verifier, deps.Store, s.logger))

			r.Get("/user/profile", profileH.HandleGet)
			r.Patch("/user/profile", profileH.HandlePatch)
			r.Get("/user/stats", profileH.HandleStats)

			r.With(s.limiter.Middleware).Post("/ai/analyze-photo", profileH.HandleAnalyze)
			r.With(s.limiter.Middleware).Post("/trials/generate", trialH.HandleGenerate)
			r.Get("/trials", trialH.HandleList)
			r.Get("/trials/{id}", trialH.HandleGet)

			r.Get("/cart", cartH.HandleList)
			r.Post("/cart", cartH.HandleAdd)
			r.Delete("/cart/{id}", cartH.HandleRemove)

			r.Post("/orders/checkout", cartH.HandleCheckout)
			r.Get("/orders", orderH.HandleListOwn)
			r.Get("/orders/{id}", orderH.HandleGetOwn)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/stats", orderH.HandleStats)
				r.Get("/orders", orderH.HandleListAll)
				r.Post("/models", catalogH.HandleCreateModel)
				r.Post("/fabrics", catalogH.HandleCreateFabric)
			})
		})
	})
}

// startBackground seeds the catalog and starts the workers, the result
// consumer, the periodic resume pass and the rate-limit janitor. Pending
// trials from a previous run are re-queued.
func (s *Server) startBackground() error {
	if s.config.SeedCatalog {
		if _, err := seed.Load(context.Background(), s.store, s.logger); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.pool.Start()
	s.bgWG.Add(3)
	go func() {
		defer s.bgWG.Done()
		s.trials.Run(ctx)
	}()
	go func() {
		defer s.bgWG.Done()
		s.trials.ResumeEvery(ctx, s.config.TryOn.ResumeInterval)
	}()
	go func() {
		defer s.bgWG.Done()
		s.limiter.Cleanup(ctx, time.Minute)
	}()

	n, err := s.trials.ResumePending(ctx, "")
	if err != nil {
		s.logger.Warn("could not resume pending trials", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Info("resumed pending trials", slog.Int("count", n))
	}
	return nil
}

func (s *Server) stopBackground() {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()
	s.pool.Stop()
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves HTTP until ctx is done, then shuts everything down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	if err := s.startBackground(); err != nil {
		return err
	}
	defer s.stopBackground()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Photo analysis runs inside the request.
		WriteTimeout: s.config.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreDriver),
			slog.String("aiProvider", s.config.AI.Provider),
			slog.String("imageStore", s.config.Images.Store),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
