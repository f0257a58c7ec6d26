package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/service"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

func defaultWeights() []service.SignalWeight {
	return []service.SignalWeight{
		{Name: valueobject.SignalCounterfeit, Weight: 1, Polarity: valueobject.PolarityRisk},
		{Name: valueobject.SignalSellerRisk, Weight: 1, Polarity: valueobject.PolarityRisk},
		{Name: valueobject.SignalReviewAuthenticity, Weight: 1, Polarity: valueobject.PolarityAuthenticity},
	}
}

func ok(name valueobject.SignalName, score float64) model.SignalResult {
	return model.NewSignalResult(name, score, 1, nil)
}

func TestFusion_Fuse(t *testing.T) {
	fusion := service.NewFusion()

	t.Run("inverts risk signals and passes authenticity through", func(t *testing.T) {
		results := []model.SignalResult{
			ok(valueobject.SignalCounterfeit, 85),
			ok(valueobject.SignalSellerRisk, 78),
			ok(valueobject.SignalReviewAuthenticity, 34),
		}

		fused, err := fusion.Fuse(results, defaultWeights())

		require.NoError(t, err)
		assert.InDelta(t, 23.67, fused.TrustScore(), 0.01)
		assert.Len(t, fused.ContributingSignals(), 3)
		assert.Empty(t, fused.MissingSignals())
	})

	t.Run("favourable signals fuse near ninety", func(t *testing.T) {
		results := []model.SignalResult{
			ok(valueobject.SignalCounterfeit, 12),
			ok(valueobject.SignalSellerRisk, 8),
			ok(valueobject.SignalReviewAuthenticity, 91),
		}

		fused, err := fusion.Fuse(results, defaultWeights())

		require.NoError(t, err)
		assert.InDelta(t, 90.33, fused.TrustScore(), 0.01)
	})

	t.Run("renormalises weights over available signals", func(t *testing.T) {
		weights := []service.SignalWeight{
			{Name: valueobject.SignalCounterfeit, Weight: 3, Polarity: valueobject.PolarityRisk},
			{Name: valueobject.SignalSellerRisk, Weight: 1, Polarity: valueobject.PolarityRisk},
			{Name: valueobject.SignalReviewAuthenticity, Weight: 1, Polarity: valueobject.PolarityAuthenticity},
		}
		results := []model.SignalResult{
			ok(valueobject.SignalCounterfeit, 20),
			model.TimeoutResult(valueobject.SignalSellerRisk, 0),
			ok(valueobject.SignalReviewAuthenticity, 40),
		}

		fused, err := fusion.Fuse(results, weights)

		require.NoError(t, err)
		// (80*3 + 40*1) / 4
		assert.InDelta(t, 70.0, fused.TrustScore(), 1e-9)
		assert.Equal(t, []valueobject.SignalName{valueobject.SignalSellerRisk}, fused.MissingSignals())

		var shares float64
		for _, c := range fused.Contributions() {
			shares += c.Weight()
		}
		assert.InDelta(t, 1.0, shares, 1e-9)
	})

	t.Run("contributing plus missing equals registered", func(t *testing.T) {
		results := []model.SignalResult{
			ok(valueobject.SignalCounterfeit, 20),
			model.ErrorResult(valueobject.SignalSellerRisk, errors.New("down"), 0),
			model.TimeoutResult(valueobject.SignalReviewAuthenticity, 0),
		}

		fused, err := fusion.Fuse(results, defaultWeights())

		require.NoError(t, err)
		assert.Equal(t, 3, len(fused.ContributingSignals())+len(fused.MissingSignals()))
	})

	t.Run("fails with insufficient signals when nothing is available", func(t *testing.T) {
		results := []model.SignalResult{
			model.TimeoutResult(valueobject.SignalCounterfeit, 0),
			model.TimeoutResult(valueobject.SignalSellerRisk, 0),
			model.ErrorResult(valueobject.SignalReviewAuthenticity, errors.New("boom"), 0),
		}

		_, err := fusion.Fuse(results, defaultWeights())

		var insufficient *model.InsufficientSignalsError
		require.ErrorAs(t, err, &insufficient)
		assert.Len(t, insufficient.Missing, 3)
	})

	t.Run("fails with insufficient signals when nothing is registered", func(t *testing.T) {
		_, err := fusion.Fuse(nil, nil)

		var insufficient *model.InsufficientSignalsError
		require.ErrorAs(t, err, &insufficient)
	})

	t.Run("result order does not change the score", func(t *testing.T) {
		a := []model.SignalResult{
			ok(valueobject.SignalCounterfeit, 33.3),
			ok(valueobject.SignalSellerRisk, 71.7),
			ok(valueobject.SignalReviewAuthenticity, 12.9),
		}
		b := []model.SignalResult{a[2], a[0], a[1]}

		fa, err := fusion.Fuse(a, defaultWeights())
		require.NoError(t, err)
		fb, err := fusion.Fuse(b, defaultWeights())
		require.NoError(t, err)

		assert.Equal(t, fa.TrustScore(), fb.TrustScore())
		assert.Equal(t, fa.Signals(), fb.Signals())
	})

	t.Run("unregistered signal uses default weight and polarity", func(t *testing.T) {
		extra := valueobject.MustSignalName("priceAnomaly")
		results := []model.SignalResult{ok(extra, 40)}

		fused, err := fusion.Fuse(results, defaultWeights())

		require.NoError(t, err)
		assert.InDelta(t, 60.0, fused.TrustScore(), 1e-9)
	})
}
