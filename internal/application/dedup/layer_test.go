package dedup_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/application/dedup"
	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
	"github.com/bibbank/trust-engine/internal/infrastructure/cache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockCache is a hand-written VerdictCache.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]model.Verdict
	getErr  error
	setErr  error
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]model.Verdict)}
}

func (m *mockCache) Get(_ context.Context, key string) (model.Verdict, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return model.Verdict{}, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, v model.Verdict, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = v
	return nil
}

// mockComputer is a hand-written Computer.
type mockComputer struct {
	calls     atomic.Int32
	computeFn func(ctx context.Context, req model.EvaluationRequest) (model.Verdict, error)
}

func (m *mockComputer) Compute(ctx context.Context, req model.EvaluationRequest) (model.Verdict, error) {
	m.calls.Add(1)
	return m.computeFn(ctx, req)
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveCache(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[result]++
}

func request(t *testing.T, productID string) model.EvaluationRequest {
	t.Helper()
	req, err := model.NewEvaluationRequest(productID, "seller-1")
	require.NoError(t, err)
	return req
}

func scoredVerdict(req model.EvaluationRequest) (model.Verdict, error) {
	signal := model.NewSignalResult(valueobject.SignalSellerRisk, 10, 1, nil)
	fused, err := model.NewFusedScore(90, []model.SignalResult{signal},
		[]model.Contribution{model.NewContribution(signal, 90, 1)})
	if err != nil {
		return model.Verdict{}, err
	}
	return model.NewVerdict(req, valueobject.ClassificationTrustworthy,
		"This product appears trustworthy (most influential signal: seller risk)",
		fused, valueobject.SignalSellerRisk, time.Now())
}

func instant() *mockComputer {
	return &mockComputer{computeFn: func(_ context.Context, req model.EvaluationRequest) (model.Verdict, error) {
		return scoredVerdict(req)
	}}
}

func TestLayer_ComputesThenServesFromCache(t *testing.T) {
	store := newMockCache()
	computer := instant()
	observer := &countingObserver{}
	layer := dedup.NewLayer(store, computer, time.Minute, observer, testLogger())
	req := request(t, "B0FAKE123")

	first, err := layer.GetOrEvaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, dedup.SourceComputed, first.Source)

	second, err := layer.GetOrEvaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, dedup.SourceCache, second.Source)
	assert.Equal(t, first.Verdict.ID(), second.Verdict.ID())

	assert.Equal(t, int32(1), computer.calls.Load())
	assert.Equal(t, 1, observer.counts["hit"])
	assert.Equal(t, 1, observer.counts["miss"])
}

func TestLayer_SingleFlight(t *testing.T) {
	const callers = 50
	release := make(chan struct{})
	computer := &mockComputer{computeFn: func(_ context.Context, req model.EvaluationRequest) (model.Verdict, error) {
		<-release
		return scoredVerdict(req)
	}}
	layer := dedup.NewLayer(newMockCache(), computer, time.Minute, nil, testLogger())
	req := request(t, "B0FAKE123")

	var (
		wg       sync.WaitGroup
		outcomes = make([]dedup.Outcome, callers)
		errs     = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i], errs[i] = layer.GetOrEvaluate(context.Background(), req)
		}()
	}

	// Let every caller reach the flight before it completes.
	require.Eventually(t, func() bool { return computer.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computer.calls.Load())
	computed := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, outcomes[0].Verdict.ID(), outcomes[i].Verdict.ID())
		switch outcomes[i].Source {
		case dedup.SourceComputed:
			computed++
		case dedup.SourceShared, dedup.SourceCache:
		default:
			t.Fatalf("unexpected source %q", outcomes[i].Source)
		}
	}
	assert.Equal(t, 1, computed)
}

func TestLayer_DistinctKeysDoNotShare(t *testing.T) {
	computer := instant()
	layer := dedup.NewLayer(newMockCache(), computer, time.Minute, nil, testLogger())

	a, err := layer.GetOrEvaluate(context.Background(), request(t, "A"))
	require.NoError(t, err)
	b, err := layer.GetOrEvaluate(context.Background(), request(t, "B"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Verdict.ID(), b.Verdict.ID())
	assert.Equal(t, int32(2), computer.calls.Load())
}

func TestLayer_ExpiredEntryIsRecomputed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	local, err := cache.NewLocalCache(context.Background(), cache.LocalConfig{TTL: time.Hour, Now: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	computer := instant()
	layer := dedup.NewLayer(local, computer, 5*time.Minute, nil, testLogger())
	req := request(t, "B0FAKE123")

	first, err := layer.GetOrEvaluate(context.Background(), req)
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(5*time.Minute + time.Second)
	mu.Unlock()

	second, err := layer.GetOrEvaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, dedup.SourceComputed, second.Source)
	assert.NotEqual(t, first.Verdict.ID(), second.Verdict.ID())
	assert.Equal(t, int32(2), computer.calls.Load())
}

func TestLayer_DegradedVerdictIsNotCached(t *testing.T) {
	store := newMockCache()
	computer := &mockComputer{computeFn: func(_ context.Context, req model.EvaluationRequest) (model.Verdict, error) {
		return model.NewDegradedVerdict(req, "Trust signals unavailable; treat this product with caution", nil, time.Now()), nil
	}}
	layer := dedup.NewLayer(store, computer, time.Minute, nil, testLogger())
	req := request(t, "B0FAKE123")

	for i := 0; i < 2; i++ {
		out, err := layer.GetOrEvaluate(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, out.Verdict.IsDegraded())
		assert.Equal(t, dedup.SourceComputed, out.Source)
	}
	assert.Equal(t, int32(2), computer.calls.Load())
	assert.Zero(t, store.sets)
}

func TestLayer_CacheFailures(t *testing.T) {
	t.Run("read failure is surfaced", func(t *testing.T) {
		store := newMockCache()
		store.getErr = model.CacheUnavailable("get", errors.New("connection refused"))
		computer := instant()
		layer := dedup.NewLayer(store, computer, time.Minute, nil, testLogger())

		_, err := layer.GetOrEvaluate(context.Background(), request(t, "B0FAKE123"))

		require.ErrorIs(t, err, model.ErrCacheUnavailable)
		assert.Zero(t, computer.calls.Load())
	})

	t.Run("write failure still serves the verdict", func(t *testing.T) {
		store := newMockCache()
		store.setErr = model.CacheUnavailable("set", errors.New("connection refused"))
		layer := dedup.NewLayer(store, instant(), time.Minute, nil, testLogger())

		out, err := layer.GetOrEvaluate(context.Background(), request(t, "B0FAKE123"))

		require.NoError(t, err)
		assert.Equal(t, dedup.SourceComputed, out.Source)
	})
}

func TestLayer_ComputePanicReleasesKey(t *testing.T) {
	var panicked atomic.Bool
	computer := &mockComputer{computeFn: func(_ context.Context, req model.EvaluationRequest) (model.Verdict, error) {
		if panicked.CompareAndSwap(false, true) {
			panic("fusion exploded")
		}
		return scoredVerdict(req)
	}}
	layer := dedup.NewLayer(newMockCache(), computer, time.Minute, nil, testLogger())
	req := request(t, "B0FAKE123")

	_, err := layer.GetOrEvaluate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fusion exploded")

	out, err := layer.GetOrEvaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, dedup.SourceComputed, out.Source)
}

func TestLayer_CallerCancellationDoesNotAbortFlight(t *testing.T) {
	release := make(chan struct{})
	var flightErr atomic.Value
	computer := &mockComputer{computeFn: func(ctx context.Context, req model.EvaluationRequest) (model.Verdict, error) {
		<-release
		if err := ctx.Err(); err != nil {
			flightErr.Store(err)
		}
		return scoredVerdict(req)
	}}
	store := newMockCache()
	layer := dedup.NewLayer(store, computer, time.Minute, nil, testLogger())
	req := request(t, "B0FAKE123")

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := layer.GetOrEvaluate(leaderCtx, req)
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return computer.calls.Load() == 1 }, time.Second, time.Millisecond)

	followerDone := make(chan dedup.Outcome, 1)
	go func() {
		out, _ := layer.GetOrEvaluate(context.Background(), req)
		followerDone <- out
	}()

	cancel()
	require.ErrorIs(t, <-leaderDone, context.Canceled)

	close(release)
	out := <-followerDone
	assert.NotEqual(t, uuid.Nil, out.Verdict.ID())
	assert.Nil(t, flightErr.Load(), "flight context must not inherit the caller's cancellation")
	assert.Equal(t, int32(1), computer.calls.Load())

	_, ok, _ := store.Get(context.Background(), req.Key())
	assert.True(t, ok, "verdict of the abandoned flight is still cached")
}
