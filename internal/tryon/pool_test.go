package tryon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/ai"
	"github.com/sakif/fitting-room/internal/imagestore"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubGenerator answers according to the fabric description: "fail" errors,
// "hang" blocks until the context ends, anything else succeeds.
type stubGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *stubGenerator) GenerateTryOn(ctx context.Context, req ai.TryOnRequest) (*ai.Image, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	switch req.FabricDescription {
	case "fail":
		return nil, errors.New("model overloaded")
	case "hang":
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &ai.Image{Data: []byte("img"), MIMEType: "image/png"}, nil
}

func collect(t *testing.T, p *Pool, n int) map[string]Result {
	t.Helper()
	got := make(map[string]Result, n)
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case r := <-p.Results():
			got[r.TrialID] = r
		case <-timeout:
			t.Fatalf("timed out after %d of %d results", len(got), n)
		}
	}
	return got
}

func TestPool_SuccessAndFailure(t *testing.T) {
	p := NewPool(&stubGenerator{}, imagestore.DataURI{}, Config{Workers: 2, QueueSize: 8, TaskTimeout: time.Second}, discard)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Submit(Job{TrialID: "ok", Request: ai.TryOnRequest{FabricDescription: "silk Royal"}}))
	require.NoError(t, p.Submit(Job{TrialID: "bad", Request: ai.TryOnRequest{FabricDescription: "fail"}}))

	got := collect(t, p, 2)

	assert.NoError(t, got["ok"].Err)
	assert.Equal(t, "data:image/png;base64,aW1n", got["ok"].ImageURL)
	assert.ErrorContains(t, got["bad"].Err, "model overloaded")
	assert.Empty(t, got["bad"].ImageURL)
}

func TestPool_TaskTimeout(t *testing.T) {
	p := NewPool(&stubGenerator{}, imagestore.DataURI{}, Config{Workers: 1, QueueSize: 1, TaskTimeout: 20 * time.Millisecond}, discard)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Submit(Job{TrialID: "slow", Request: ai.TryOnRequest{FabricDescription: "hang"}}))

	got := collect(t, p, 1)
	assert.ErrorIs(t, got["slow"].Err, context.DeadlineExceeded)
}

func TestPool_QueueFullAndDuplicates(t *testing.T) {
	gen := &stubGenerator{release: make(chan struct{})}
	p := NewPool(gen, imagestore.DataURI{}, Config{Workers: 1, QueueSize: 1, TaskTimeout: time.Second}, discard)

	// Not started: the single queue slot fills and stays full.
	require.NoError(t, p.Submit(Job{TrialID: "a"}))
	assert.ErrorIs(t, p.Submit(Job{TrialID: "a"}), ErrInFlight)
	assert.ErrorIs(t, p.Submit(Job{TrialID: "b"}), ErrQueueFull)

	p.Start()
	close(gen.release)
	collect(t, p, 1)
	p.Stop()

	assert.ErrorIs(t, p.Submit(Job{TrialID: "c"}), ErrStopped)
}

func TestPool_TrialInFlightUntilResultHandedOff(t *testing.T) {
	gen := &stubGenerator{}
	p := NewPool(gen, imagestore.DataURI{}, Config{Workers: 1, QueueSize: 1, TaskTimeout: time.Second}, discard)
	p.Start()
	defer p.Stop()

	// "a" fills the single result slot, so the worker finishes "b" and then
	// waits to hand its result off.
	require.NoError(t, p.Submit(Job{TrialID: "a"}))
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return p.Submit(Job{TrialID: "b"}) == nil }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return gen.calls.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, p.Submit(Job{TrialID: "b"}), ErrInFlight, "generated but not handed off")

	collect(t, p, 2)
	require.Eventually(t, func() bool { return p.Submit(Job{TrialID: "b"}) == nil }, time.Second, time.Millisecond)
}

func TestPool_BoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	gen := generatorFunc(func(ctx context.Context, _ ai.TryOnRequest) (*ai.Image, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return &ai.Image{Data: []byte("x")}, nil
	})

	p := NewPool(gen, imagestore.DataURI{}, Config{Workers: 3, QueueSize: 16, TaskTimeout: time.Second}, discard)
	p.Start()
	defer p.Stop()

	for i := 0; i < 12; i++ {
		require.NoError(t, p.Submit(Job{TrialID: string(rune('a' + i))}))
	}
	collect(t, p, 12)

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPool_StopClosesResults(t *testing.T) {
	p := NewPool(&stubGenerator{}, imagestore.DataURI{}, DefaultConfig(), discard)
	p.Start()
	p.Stop()
	p.Stop()

	_, ok := <-p.Results()
	assert.False(t, ok)
}

type generatorFunc func(ctx context.Context, req ai.TryOnRequest) (*ai.Image, error)

func (f generatorFunc) GenerateTryOn(ctx context.Context, req ai.TryOnRequest) (*ai.Image, error) {
	return f(ctx, req)
}
