package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// Verdict is the terminal artifact of one evaluation. It is never mutated
// after creation; a repeated evaluation of the same subject produces a new one.
type Verdict struct {
	id             uuid.UUID
	request        EvaluationRequest
	classification valueobject.Classification
	message        string
	fused          FusedScore
	citedSignal    valueobject.SignalName
	degraded       bool
	evaluatedAt    time.Time
}

// NewVerdict creates a verdict backed by a scored fusion.
func NewVerdict(
	request EvaluationRequest,
	classification valueobject.Classification,
	message string,
	fused FusedScore,
	citedSignal valueobject.SignalName,
	evaluatedAt time.Time,
) (Verdict, error) {
	if classification.IsZero() {
		return Verdict{}, fmt.Errorf("classification is required")
	}
	if !fused.IsScored() {
		return Verdict{}, &InsufficientSignalsError{Missing: fused.MissingSignals()}
	}
	if message == "" {
		return Verdict{}, fmt.Errorf("message is required")
	}

	return Verdict{
		id:             uuid.New(),
		request:        request,
		classification: classification,
		message:        message,
		fused:          fused,
		citedSignal:    citedSignal,
		evaluatedAt:    evaluatedAt.UTC(),
	}, nil
}

// NewDegradedVerdict creates the suspicious verdict returned when no signal
// was available. It carries no trust score.
func NewDegradedVerdict(request EvaluationRequest, message string, signals []SignalResult, evaluatedAt time.Time) Verdict {
	return Verdict{
		id:             uuid.New(),
		request:        request,
		classification: valueobject.ClassificationSuspicious,
		message:        message,
		fused:          unscoredFusion(signals),
		degraded:       true,
		evaluatedAt:    evaluatedAt.UTC(),
	}
}

// ReconstructVerdict rebuilds a Verdict from cached state without validation.
func ReconstructVerdict(
	id uuid.UUID,
	request EvaluationRequest,
	classification valueobject.Classification,
	message string,
	fused FusedScore,
	citedSignal valueobject.SignalName,
	degraded bool,
	evaluatedAt time.Time,
) Verdict {
	return Verdict{
		id:             id,
		request:        request,
		classification: classification,
		message:        message,
		fused:          fused,
		citedSignal:    citedSignal,
		degraded:       degraded,
		evaluatedAt:    evaluatedAt,
	}
}

// ReconstructFusedScore rebuilds a FusedScore from cached state without validation.
func ReconstructFusedScore(trustScore float64, signals []SignalResult, contributions []Contribution) FusedScore {
	return FusedScore{trustScore: trustScore, signals: signals, contributions: contributions}
}

// ReconstructEvaluationRequest rebuilds a request from trusted state.
func ReconstructEvaluationRequest(productID, sellerID string) EvaluationRequest {
	return EvaluationRequest{productID: productID, sellerID: sellerID}
}

// Accessors

func (v Verdict) ID() uuid.UUID                              { return v.id }
func (v Verdict) Request() EvaluationRequest                 { return v.request }
func (v Verdict) Classification() valueobject.Classification { return v.classification }
func (v Verdict) Message() string                            { return v.message }
func (v Verdict) FusedScore() FusedScore                     { return v.fused }
func (v Verdict) CitedSignal() valueobject.SignalName        { return v.citedSignal }
func (v Verdict) IsDegraded() bool                           { return v.degraded }
func (v Verdict) EvaluatedAt() time.Time                     { return v.evaluatedAt }

// TrustScore returns the fused trust score, or false for a degraded verdict.
func (v Verdict) TrustScore() (float64, bool) {
	if v.degraded {
		return 0, false
	}
	return v.fused.TrustScore(), true
}
