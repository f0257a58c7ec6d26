package registry_test

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixed(score float64) port.Evaluator {
	return port.EvaluatorFunc(func(_ context.Context, _ model.EvaluationRequest) (model.SignalResult, error) {
		return model.NewSignalResult(valueobject.SignalCounterfeit, score, 1, nil), nil
	})
}

func names(entries []registry.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name.String())
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	t.Run("keeps registration order", func(t *testing.T) {
		reg := registry.New(testLogger())

		require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))
		require.NoError(t, reg.Register(valueobject.SignalSellerRisk, fixed(1), 2))
		require.NoError(t, reg.Register(valueobject.SignalReviewAuthenticity, fixed(1), 0.5))

		assert.Equal(t, []string{"counterfeit", "sellerRisk", "reviewAuthenticity"}, names(reg.List()))
		assert.Equal(t, uint64(3), reg.Snapshot().Version())
	})

	t.Run("rejects non-positive weights", func(t *testing.T) {
		reg := registry.New(testLogger())

		for _, w := range []float64{0, -1, math.NaN(), math.Inf(1)} {
			err := reg.Register(valueobject.SignalCounterfeit, fixed(1), w)
			var vErr *model.ValidationError
			require.ErrorAs(t, err, &vErr, "weight %v", w)
		}
		assert.Empty(t, reg.List())
	})

	t.Run("rejects nil evaluator", func(t *testing.T) {
		reg := registry.New(testLogger())
		require.Error(t, reg.Register(valueobject.SignalCounterfeit, nil, 1))
	})

	t.Run("re-registering replaces in place", func(t *testing.T) {
		reg := registry.New(testLogger())
		require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))
		require.NoError(t, reg.Register(valueobject.SignalSellerRisk, fixed(1), 1))

		require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(2), 4))

		entries := reg.List()
		assert.Equal(t, []string{"counterfeit", "sellerRisk"}, names(entries))
		assert.Equal(t, 4.0, entries[0].Weight)
	})

	t.Run("applies default and explicit polarity", func(t *testing.T) {
		reg := registry.New(testLogger())
		custom := valueobject.MustSignalName("brandMatch")
		require.NoError(t, reg.Register(valueobject.SignalReviewAuthenticity, fixed(1), 1))
		require.NoError(t, reg.Register(custom, fixed(1), 1, registry.WithPolarity(valueobject.PolarityAuthenticity)))

		weights := reg.Snapshot().Weights()
		require.Len(t, weights, 2)
		assert.Equal(t, valueobject.PolarityAuthenticity, weights[0].Polarity)
		assert.Equal(t, valueobject.PolarityAuthenticity, weights[1].Polarity)
	})
}

func TestRegistry_EnableDisable(t *testing.T) {
	reg := registry.New(testLogger())
	require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))
	require.NoError(t, reg.Register(valueobject.SignalSellerRisk, fixed(1), 1, registry.Disabled()))

	assert.Equal(t, []string{"counterfeit"}, names(reg.List()))
	assert.Len(t, reg.Snapshot().Entries(), 2)

	require.NoError(t, reg.SetEnabled(valueobject.SignalSellerRisk, true))
	require.NoError(t, reg.SetEnabled(valueobject.SignalCounterfeit, false))

	assert.Equal(t, []string{"sellerRisk"}, names(reg.List()))
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	reg := registry.New(testLogger())
	require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))

	before := reg.Snapshot()
	require.NoError(t, reg.SetWeight(valueobject.SignalCounterfeit, 5))
	require.NoError(t, reg.Register(valueobject.SignalSellerRisk, fixed(1), 1))

	assert.Len(t, before.Active(), 1)
	assert.Equal(t, 1.0, before.Active()[0].Weight)
	assert.Equal(t, 5.0, reg.List()[0].Weight)
	assert.Greater(t, reg.Snapshot().Version(), before.Version())
}

func TestRegistry_Apply(t *testing.T) {
	reg := registry.New(testLogger())
	require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))
	require.NoError(t, reg.Register(valueobject.SignalSellerRisk, fixed(1), 1))

	t.Run("unknown evaluator aborts the whole swap", func(t *testing.T) {
		w := 3.0
		err := reg.Apply(map[valueobject.SignalName]registry.Setting{
			valueobject.SignalCounterfeit:        {Weight: &w},
			valueobject.MustSignalName("absent"): {Weight: &w},
		})

		require.ErrorIs(t, err, registry.ErrUnknownEvaluator)
		assert.Equal(t, 1.0, reg.List()[0].Weight)
	})

	t.Run("invalid weight aborts the whole swap", func(t *testing.T) {
		good, bad := 2.0, -2.0
		err := reg.Apply(map[valueobject.SignalName]registry.Setting{
			valueobject.SignalCounterfeit: {Weight: &good},
			valueobject.SignalSellerRisk:  {Weight: &bad},
		})

		require.Error(t, err)
		assert.Equal(t, 1.0, reg.List()[0].Weight)
	})

	t.Run("applies every setting", func(t *testing.T) {
		w, off := 2.5, false
		require.NoError(t, reg.Apply(map[valueobject.SignalName]registry.Setting{
			valueobject.SignalCounterfeit: {Weight: &w},
			valueobject.SignalSellerRisk:  {Enabled: &off},
		}))

		active := reg.List()
		require.Len(t, active, 1)
		assert.Equal(t, 2.5, active[0].Weight)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	reg := registry.New(testLogger())
	require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))

	require.NoError(t, reg.Unregister(valueobject.SignalCounterfeit))
	assert.Empty(t, reg.List())
	require.ErrorIs(t, reg.Unregister(valueobject.SignalCounterfeit), registry.ErrUnknownEvaluator)
}

func TestRegistry_ConcurrentReadersAndWriters(t *testing.T) {
	reg := registry.New(testLogger())
	require.NoError(t, reg.Register(valueobject.SignalCounterfeit, fixed(1), 1))
	require.NoError(t, reg.Register(valueobject.SignalSellerRisk, fixed(1), 1))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.SetWeight(valueobject.SignalCounterfeit, float64(i+1))
		}()
		go func() {
			defer wg.Done()
			snap := reg.Snapshot()
			assert.Len(t, snap.Weights(), len(snap.Active()))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(22), reg.Snapshot().Version())
}
