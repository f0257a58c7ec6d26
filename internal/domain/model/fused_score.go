package model

import (
	"fmt"
	"slices"

	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// Contribution is one available signal's share of a fused score.
type Contribution struct {
	signal SignalResult
	trust  float64
	weight float64
}

// NewContribution creates a Contribution. Trust is the signal's score on the
// trust scale; weight is the renormalised fusion weight.
func NewContribution(signal SignalResult, trust, weight float64) Contribution {
	return Contribution{signal: signal, trust: clamp(trust, 0, 100), weight: weight}
}

func (c Contribution) Signal() SignalResult { return c.signal }
func (c Contribution) Trust() float64       { return c.trust }
func (c Contribution) Weight() float64      { return c.weight }

// Deviation is the distance from the trust-neutral midpoint of 50.
func (c Contribution) Deviation() float64 {
	d := c.trust - 50
	if d < 0 {
		return -d
	}
	return d
}

// FusedScore combines the available signals into one trust score.
// Signals are held in registration order.
type FusedScore struct {
	trustScore    float64
	signals       []SignalResult
	contributions []Contribution
}

// NewFusedScore creates a FusedScore. At least one contribution is required
// and every contribution must belong to the given signal set.
func NewFusedScore(trustScore float64, signals []SignalResult, contributions []Contribution) (FusedScore, error) {
	if len(contributions) == 0 {
		return FusedScore{}, &InsufficientSignalsError{Missing: missingNames(signals)}
	}
	if trustScore < 0 || trustScore > 100 {
		return FusedScore{}, fmt.Errorf("trust score %.2f out of range", trustScore)
	}
	return FusedScore{
		trustScore:    trustScore,
		signals:       slices.Clone(signals),
		contributions: slices.Clone(contributions),
	}, nil
}

// unscoredFusion holds the signals of an evaluation that produced no score.
func unscoredFusion(signals []SignalResult) FusedScore {
	return FusedScore{signals: slices.Clone(signals)}
}

func (f FusedScore) TrustScore() float64 { return f.trustScore }

// IsScored reports whether the score is backed by at least one signal.
func (f FusedScore) IsScored() bool { return len(f.contributions) > 0 }

// Signals returns every result of the evaluation, available or not.
func (f FusedScore) Signals() []SignalResult {
	return slices.Clone(f.signals)
}

// Contributions returns the per-signal breakdown of the score.
func (f FusedScore) Contributions() []Contribution {
	return slices.Clone(f.contributions)
}

// ContributingSignals returns the results that took part in fusion.
func (f FusedScore) ContributingSignals() []SignalResult {
	out := make([]SignalResult, 0, len(f.contributions))
	for _, c := range f.contributions {
		out = append(out, c.signal)
	}
	return out
}

// MissingSignals returns the names of signals that timed out or failed.
func (f FusedScore) MissingSignals() []valueobject.SignalName {
	return missingNames(f.signals)
}

// Contribution returns the contribution of the named signal, if it was available.
func (f FusedScore) Contribution(name valueobject.SignalName) (Contribution, bool) {
	for _, c := range f.contributions {
		if c.signal.Name() == name {
			return c, true
		}
	}
	return Contribution{}, false
}

func missingNames(signals []SignalResult) []valueobject.SignalName {
	out := make([]valueobject.SignalName, 0)
	for _, s := range signals {
		if !s.IsAvailable() {
			out = append(out, s.Name())
		}
	}
	return out
}
