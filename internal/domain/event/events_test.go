package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/domain/event"
	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/service"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

func verdictFor(t *testing.T, counterfeit, seller, review float64) model.Verdict {
	t.Helper()
	req, err := model.NewEvaluationRequest("B0FAKE123", "seller-1")
	require.NoError(t, err)

	fused, err := service.NewFusion().Fuse([]model.SignalResult{
		model.NewSignalResult(valueobject.SignalCounterfeit, counterfeit, 1, nil),
		model.NewSignalResult(valueobject.SignalSellerRisk, seller, 1, nil),
		model.NewSignalResult(valueobject.SignalReviewAuthenticity, review, 1, nil),
	}, nil)
	require.NoError(t, err)

	v, err := service.NewClassifier(service.DefaultClassifierConfig()).Classify(req, fused)
	require.NoError(t, err)
	return v
}

func TestFromVerdict_Trustworthy(t *testing.T) {
	evts := event.FromVerdict(verdictFor(t, 12, 8, 91))

	require.Len(t, evts, 1)
	completed, ok := evts[0].(event.TrustCheckCompleted)
	require.True(t, ok)
	assert.Equal(t, event.EventTypeTrustCheckCompleted, completed.EventType())
	assert.Equal(t, "B0FAKE123", completed.AggregateID())
	assert.Equal(t, "trustworthy", completed.Classification)
	require.NotNil(t, completed.TrustScore)
	assert.False(t, completed.Degraded)
}

func TestFromVerdict_HighRisk(t *testing.T) {
	evts := event.FromVerdict(verdictFor(t, 85, 78, 34))

	require.Len(t, evts, 2)
	highRisk, ok := evts[1].(event.HighRiskDetected)
	require.True(t, ok)
	assert.Equal(t, event.EventTypeHighRiskDetected, highRisk.EventType())
	assert.Equal(t, "counterfeit", highRisk.CitedSignal)
	assert.Empty(t, highRisk.Missing)
}

func TestFromVerdict_Degraded(t *testing.T) {
	req, err := model.NewEvaluationRequest("B0FAKE123", "")
	require.NoError(t, err)
	v := service.NewClassifier(service.DefaultClassifierConfig()).Degraded(req,
		[]model.SignalResult{model.TimeoutResult(valueobject.SignalCounterfeit, time.Second)})

	evts := event.FromVerdict(v)

	require.Len(t, evts, 1)
	payload, err := json.Marshal(evts[0])
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Nil(t, parsed["trust_score"])
	assert.Equal(t, true, parsed["degraded"])
	assert.Equal(t, map[string]any{"counterfeit": "timeout"}, parsed["signal_statuses"])
}
