package model

import (
	"maps"
	"math"
	"time"

	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// SignalResult is the output of one evaluator invocation. The score is only
// present when the status is ok.
type SignalResult struct {
	name       valueobject.SignalName
	score      float64
	confidence float64
	status     valueobject.SignalStatus
	detail     map[string]any
	reason     string
	latency    time.Duration
}

// NewSignalResult creates a successful result. Score is clamped to [0,100]
// and confidence to [0,1].
func NewSignalResult(name valueobject.SignalName, score, confidence float64, detail map[string]any) SignalResult {
	return SignalResult{
		name:       name,
		score:      clamp(score, 0, 100),
		confidence: clamp(confidence, 0, 1),
		status:     valueobject.SignalStatusOK,
		detail:     maps.Clone(detail),
	}
}

// TimeoutResult records an evaluator that exceeded its deadline.
func TimeoutResult(name valueobject.SignalName, latency time.Duration) SignalResult {
	return SignalResult{
		name:    name,
		status:  valueobject.SignalStatusTimeout,
		reason:  ErrEvaluatorTimeout.Error(),
		latency: latency,
	}
}

// ErrorResult records an evaluator that failed.
func ErrorResult(name valueobject.SignalName, err error, latency time.Duration) SignalResult {
	r := SignalResult{
		name:    name,
		status:  valueobject.SignalStatusError,
		latency: latency,
	}
	if err != nil {
		r.reason = err.Error()
	}
	return r
}

// ReconstructSignalResult rebuilds a SignalResult from persisted state without validation.
func ReconstructSignalResult(
	name valueobject.SignalName,
	score, confidence float64,
	status valueobject.SignalStatus,
	detail map[string]any,
	reason string,
	latency time.Duration,
) SignalResult {
	return SignalResult{
		name:       name,
		score:      score,
		confidence: confidence,
		status:     status,
		detail:     detail,
		reason:     reason,
		latency:    latency,
	}
}

// WithName returns a copy attributed to the given signal.
func (r SignalResult) WithName(name valueobject.SignalName) SignalResult {
	r.name = name
	return r
}

// WithLatency returns a copy carrying the measured evaluator latency.
func (r SignalResult) WithLatency(d time.Duration) SignalResult {
	r.latency = d
	return r
}

// Normalized returns a copy with score and confidence forced into range.
// Evaluators are external; their output is not trusted to be well-formed.
func (r SignalResult) Normalized() SignalResult {
	if r.status.IsZero() {
		r.status = valueobject.SignalStatusOK
	}
	if math.IsNaN(r.score) || math.IsNaN(r.confidence) {
		return ErrorResult(r.name, errNaNScore, r.latency)
	}
	r.score = clamp(r.score, 0, 100)
	r.confidence = clamp(r.confidence, 0, 1)
	return r
}

func (r SignalResult) Name() valueobject.SignalName     { return r.name }
func (r SignalResult) Confidence() float64              { return r.confidence }
func (r SignalResult) Status() valueobject.SignalStatus { return r.status }
func (r SignalResult) Reason() string                   { return r.reason }
func (r SignalResult) Latency() time.Duration           { return r.latency }

// Score returns the raw evaluator score and whether it is present.
func (r SignalResult) Score() (float64, bool) {
	if !r.status.IsAvailable() {
		return 0, false
	}
	return r.score, true
}

// Detail returns a copy of the evidence attached by the evaluator.
func (r SignalResult) Detail() map[string]any {
	return maps.Clone(r.detail)
}

// IsAvailable reports whether the result can contribute to fusion.
func (r SignalResult) IsAvailable() bool {
	return r.status.IsAvailable()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
