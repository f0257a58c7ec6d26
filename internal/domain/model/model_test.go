package model_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

func TestNewEvaluationRequest(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		sellerID  string
		wantField string
	}{
		{name: "product and seller", productID: "B0FAKE123", sellerID: "seller-9"},
		{name: "seller is optional", productID: "B0FAKE123"},
		{name: "empty product", productID: "", wantField: "productId"},
		{name: "whitespace product", productID: "   ", wantField: "productId"},
		{name: "product too long", productID: strings.Repeat("p", 257), wantField: "productId"},
		{name: "seller too long", productID: "B0", sellerID: strings.Repeat("s", 257), wantField: "sellerId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := model.NewEvaluationRequest(tt.productID, tt.sellerID)
			if tt.wantField != "" {
				var vErr *model.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.productID, req.ProductID())
			assert.Equal(t, tt.sellerID, req.SellerID())
		})
	}
}

func TestEvaluationRequest_Key(t *testing.T) {
	a, err := model.NewEvaluationRequest("ab", "c")
	require.NoError(t, err)
	b, err := model.NewEvaluationRequest("a", "bc")
	require.NoError(t, err)
	same, err := model.NewEvaluationRequest(" ab ", "c")
	require.NoError(t, err)

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), same.Key())
}

func TestNewSignalResult_ClampsRanges(t *testing.T) {
	r := model.NewSignalResult(valueobject.SignalCounterfeit, 140, -0.5, nil)

	score, ok := r.Score()
	require.True(t, ok)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, 0.0, r.Confidence())
	assert.True(t, r.IsAvailable())
}

func TestSignalResult_UnavailableHasNoScore(t *testing.T) {
	timeout := model.TimeoutResult(valueobject.SignalSellerRisk, 500*time.Millisecond)
	failed := model.ErrorResult(valueobject.SignalSellerRisk, errors.New("boom"), time.Millisecond)

	_, ok := timeout.Score()
	assert.False(t, ok)
	assert.Equal(t, valueobject.SignalStatusTimeout, timeout.Status())

	_, ok = failed.Score()
	assert.False(t, ok)
	assert.Equal(t, "boom", failed.Reason())
}

func TestSignalResult_NormalizedRejectsNaN(t *testing.T) {
	r := model.NewSignalResult(valueobject.SignalCounterfeit, math.NaN(), 1, nil).Normalized()
	assert.Equal(t, valueobject.SignalStatusError, r.Status())
}

func TestSignalResult_DetailIsCopied(t *testing.T) {
	detail := map[string]any{"flaggedReviews": 3}
	r := model.NewSignalResult(valueobject.SignalReviewAuthenticity, 70, 1, detail)
	detail["flaggedReviews"] = 99

	assert.Equal(t, 3, r.Detail()["flaggedReviews"])
}

func TestNewFusedScore(t *testing.T) {
	ok := model.NewSignalResult(valueobject.SignalCounterfeit, 20, 1, nil)
	missing := model.TimeoutResult(valueobject.SignalSellerRisk, 0)

	t.Run("requires a contribution", func(t *testing.T) {
		_, err := model.NewFusedScore(50, []model.SignalResult{missing}, nil)
		var insufficient *model.InsufficientSignalsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, []valueobject.SignalName{valueobject.SignalSellerRisk}, insufficient.Missing)
	})

	t.Run("rejects out of range score", func(t *testing.T) {
		_, err := model.NewFusedScore(101, []model.SignalResult{ok}, []model.Contribution{model.NewContribution(ok, 80, 1)})
		require.Error(t, err)
	})

	t.Run("splits contributing and missing", func(t *testing.T) {
		fused, err := model.NewFusedScore(80, []model.SignalResult{ok, missing},
			[]model.Contribution{model.NewContribution(ok, 80, 1)})
		require.NoError(t, err)

		assert.Len(t, fused.ContributingSignals(), 1)
		assert.Equal(t, []valueobject.SignalName{valueobject.SignalSellerRisk}, fused.MissingSignals())
		assert.Len(t, fused.Signals(), 2)

		c, found := fused.Contribution(valueobject.SignalCounterfeit)
		require.True(t, found)
		assert.Equal(t, 30.0, c.Deviation())
	})
}

func TestNewVerdict(t *testing.T) {
	req, err := model.NewEvaluationRequest("B0FAKE123", "")
	require.NoError(t, err)
	sig := model.NewSignalResult(valueobject.SignalCounterfeit, 10, 1, nil)
	fused, err := model.NewFusedScore(90, []model.SignalResult{sig}, []model.Contribution{model.NewContribution(sig, 90, 1)})
	require.NoError(t, err)

	t.Run("valid verdict", func(t *testing.T) {
		v, err := model.NewVerdict(req, valueobject.ClassificationTrustworthy, "This product appears trustworthy",
			fused, valueobject.SignalCounterfeit, time.Now())
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, v.ID())
		score, ok := v.TrustScore()
		assert.True(t, ok)
		assert.Equal(t, 90.0, score)
		assert.False(t, v.IsDegraded())
	})

	t.Run("classification is required", func(t *testing.T) {
		_, err := model.NewVerdict(req, valueobject.Classification{}, "msg", fused, valueobject.SignalCounterfeit, time.Now())
		require.Error(t, err)
	})

	t.Run("degraded verdict carries no score", func(t *testing.T) {
		v := model.NewDegradedVerdict(req, "Trust signals unavailable",
			[]model.SignalResult{model.TimeoutResult(valueobject.SignalCounterfeit, 0)}, time.Now())

		_, ok := v.TrustScore()
		assert.False(t, ok)
		assert.True(t, v.IsDegraded())
		assert.Equal(t, valueobject.ClassificationSuspicious, v.Classification())
		assert.Equal(t, []valueobject.SignalName{valueobject.SignalCounterfeit}, v.FusedScore().MissingSignals())
	})
}

func TestNewAuditRecord(t *testing.T) {
	req, err := model.NewEvaluationRequest("B0FAKE123", "seller-1")
	require.NoError(t, err)
	signals := []model.SignalResult{
		model.NewSignalResult(valueobject.SignalCounterfeit, 85, 1, nil),
		model.ErrorResult(valueobject.SignalSellerRisk, errors.New("down"), 0),
	}
	fused, err := model.NewFusedScore(15, signals, []model.Contribution{model.NewContribution(signals[0], 15, 1)})
	require.NoError(t, err)
	v, err := model.NewVerdict(req, valueobject.ClassificationHighRisk, "msg", fused, valueobject.SignalCounterfeit, time.Now())
	require.NoError(t, err)

	rec := model.NewAuditRecord(v, true, time.Now())

	assert.Equal(t, v.ID(), rec.VerdictID())
	assert.Equal(t, "B0FAKE123", rec.ProductID())
	assert.Equal(t, "seller-1", rec.SellerID())
	require.NotNil(t, rec.TrustScore())
	assert.Equal(t, 15.0, *rec.TrustScore())
	assert.Equal(t, map[string]string{"counterfeit": "ok", "sellerRisk": "error"}, rec.SignalStatuses())
	assert.True(t, rec.Cached())
}

func TestErrors(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := model.CacheUnavailable("get", cause)
	assert.ErrorIs(t, err, model.ErrCacheUnavailable)
	assert.ErrorIs(t, err, cause)

	evErr := &model.EvaluatorError{Signal: valueobject.SignalCounterfeit, Err: model.ErrEvaluatorTimeout}
	assert.True(t, evErr.Timeout())
	assert.Contains(t, evErr.Error(), "counterfeit")

	insufficient := &model.InsufficientSignalsError{Missing: []valueobject.SignalName{valueobject.SignalCounterfeit}}
	assert.Contains(t, insufficient.Error(), "counterfeit unavailable")
}
