package service

import (
	"math"
	"slices"
	"strings"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// SignalWeight is the fusion configuration of one registered signal.
type SignalWeight struct {
	Name     valueobject.SignalName
	Weight   float64
	Polarity valueobject.Polarity
}

// Fusion combines signal results into a single trust score. It is a pure
// function of its inputs: evaluator completion order does not affect the
// outcome.
type Fusion struct{}

// NewFusion creates a new Fusion engine.
func NewFusion() *Fusion {
	return &Fusion{}
}

// Fuse normalises every available result to the trust scale and computes the
// weighted mean, renormalising weights over the available subset. Results
// for signals absent from weights fall back to weight 1 and the signal's
// default polarity.
func (f *Fusion) Fuse(results []model.SignalResult, weights []SignalWeight) (model.FusedScore, error) {
	ordered := orderByRegistration(results, weights)

	lookup := make(map[valueobject.SignalName]SignalWeight, len(weights))
	for _, w := range weights {
		lookup[w.Name] = w
	}

	type available struct {
		result model.SignalResult
		trust  float64
		weight float64
	}

	var (
		picked []available
		total  float64
	)
	for _, r := range ordered {
		score, ok := r.Score()
		if !ok {
			continue
		}

		w, known := lookup[r.Name()]
		if !known || w.Weight <= 0 {
			w = SignalWeight{Name: r.Name(), Weight: 1}
		}
		if w.Polarity.IsZero() {
			w.Polarity = r.Name().DefaultPolarity()
		}

		picked = append(picked, available{result: r, trust: w.Polarity.ToTrust(score), weight: w.Weight})
		total += w.Weight
	}

	if len(picked) == 0 {
		return model.FusedScore{}, &model.InsufficientSignalsError{Missing: namesOf(ordered)}
	}

	contributions := make([]model.Contribution, 0, len(picked))
	var mean float64
	for _, p := range picked {
		share := p.weight / total
		mean += p.trust * share
		contributions = append(contributions, model.NewContribution(p.result, p.trust, share))
	}

	return model.NewFusedScore(roundScore(mean), ordered, contributions)
}

// orderByRegistration sorts results by the position of their signal in
// weights; unregistered signals follow, ordered by name.
func orderByRegistration(results []model.SignalResult, weights []SignalWeight) []model.SignalResult {
	position := make(map[valueobject.SignalName]int, len(weights))
	for i, w := range weights {
		position[w.Name] = i
	}

	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b model.SignalResult) int {
		pa, okA := position[a.Name()]
		pb, okB := position[b.Name()]
		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return strings.Compare(a.Name().String(), b.Name().String())
		}
	})
	return ordered
}

func namesOf(results []model.SignalResult) []valueobject.SignalName {
	out := make([]valueobject.SignalName, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name())
	}
	return out
}

// roundScore clamps to [0,100] and rounds to two decimals.
func roundScore(v float64) float64 {
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*100) / 100
}
