// Package tryon runs try-on image generation on a bounded pool of workers.
//
// Callers Submit jobs without blocking and read outcomes from Results. The
// pool never touches trial records; whoever drains Results performs the
// status transition.
package tryon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/fitting-room/internal/ai"
	"github.com/sakif/fitting-room/internal/imagestore"
)

// Submit errors. None of them blocks the caller.
var (
	ErrQueueFull = errors.New("tryon: queue is full")
	ErrStopped   = errors.New("tryon: pool is stopped")
	ErrInFlight  = errors.New("tryon: trial already queued")
)

// Config sizes the pool. Workers bounds how many try-ons run at once,
// QueueSize how many may wait, and TaskTimeout how long one job may take
// from the generator call through the image upload.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// DefaultConfig fills in any zero field passed to NewPool.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 64, TaskTimeout: 60 * time.Second}
}

// Job asks for one try-on image for the trial with TrialID.
type Job struct {
	TrialID string
	Request ai.TryOnRequest
}

// Result is the outcome of one job. Err is nil exactly when ImageURL holds
// the stored image reference.
type Result struct {
	TrialID  string
	ImageURL string
	Err      error
	Duration time.Duration
}

// Pool is a fixed set of workers reading from a bounded queue. A trial id
// can be queued at most once at a time; it is released once the worker has
// passed its Result on.
type Pool struct {
	gen    ai.ImageGenerator
	images imagestore.Store
	config Config
	logger *slog.Logger

	jobs    chan Job
	results chan Result

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPool builds a stopped pool that generates with gen and stores the
// images in images. Call Start before submitting work that must run.
func NewPool(gen ai.ImageGenerator, images imagestore.Store, cfg Config, logger *slog.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		gen:      gen,
		images:   images,
		config:   cfg,
		logger:   logger,
		jobs:     make(chan Job, cfg.QueueSize),
		results:  make(chan Result, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		inflight: make(map[string]struct{}),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting try-on worker pool",
			slog.Int("workers", p.config.Workers),
			slog.Int("queueSize", p.config.QueueSize),
			slog.Duration("taskTimeout", p.config.TaskTimeout),
		)
		for i := 0; i < p.config.Workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop cancels running jobs, waits for the workers and closes Results.
// Jobs still queued are dropped; their trials stay pending.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down try-on worker pool")
		close(p.done)
		p.cancel()
		p.wg.Wait()
		close(p.results)
	})
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.done:
		return ErrStopped
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[job.TrialID]; ok {
		return ErrInFlight
	}

	select {
	case p.jobs <- job:
		p.inflight[job.TrialID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Results delivers one Result per accepted job. It is closed by Stop, and
// it must be drained or workers stall once it fills up.
func (p *Pool) Results() <-chan Result {
	return p.results
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			res := p.run(job)

			// The trial stays in flight until its result is handed off,
			// so a resubmission cannot overtake it.
			select {
			case p.results <- res:
			case <-p.done:
				return
			}

			p.mu.Lock()
			delete(p.inflight, job.TrialID)
			p.mu.Unlock()
		}
	}
}

func (p *Pool) run(job Job) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.config.TaskTimeout)
	defer cancel()

	res := Result{TrialID: job.TrialID}
	res.ImageURL, res.Err = p.generate(ctx, job)
	res.Duration = time.Since(start)
	return res
}

func (p *Pool) generate(ctx context.Context, job Job) (string, error) {
	img, err := p.gen.GenerateTryOn(ctx, job.Request)
	if err != nil {
		return "", fmt.Errorf("generating image: %w", err)
	}
	ref, err := p.images.Put(ctx, job.TrialID, img.Data, img.MIMEType)
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return ref, nil
}
