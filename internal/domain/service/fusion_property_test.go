//go:build property

package service_test

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/service"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

var permutations = [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

// buildResults maps a status selector (0 ok, 1 timeout, 2 error) and a score
// to a result for each built-in signal.
func buildResults(scores [3]float64, statuses [3]int) []model.SignalResult {
	names := []valueobject.SignalName{
		valueobject.SignalCounterfeit,
		valueobject.SignalSellerRisk,
		valueobject.SignalReviewAuthenticity,
	}
	out := make([]model.SignalResult, 3)
	for i, name := range names {
		switch statuses[i] {
		case 1:
			out[i] = model.TimeoutResult(name, 0)
		case 2:
			out[i] = model.ErrorResult(name, errors.New("unavailable"), 0)
		default:
			out[i] = model.NewSignalResult(name, scores[i], 1, nil)
		}
	}
	return out
}

func evaluate(results []model.SignalResult) (model.Verdict, error) {
	req, _ := model.NewEvaluationRequest("B0PROPERTY", "")
	fused, err := service.NewFusion().Fuse(results, defaultWeights())
	classifier := service.NewClassifier(service.DefaultClassifierConfig())
	var insufficient *model.InsufficientSignalsError
	if errors.As(err, &insufficient) {
		return classifier.Degraded(req, results), nil
	}
	if err != nil {
		return model.Verdict{}, err
	}
	return classifier.Classify(req, fused)
}

func TestFusionClassificationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	score := gen.Float64Range(0, 100)
	status := gen.IntRange(0, 2)

	properties.Property("trust score stays within [0,100] and classification is enumerated", prop.ForAll(
		func(a, b, c float64, sa, sb, sc int) bool {
			v, err := evaluate(buildResults([3]float64{a, b, c}, [3]int{sa, sb, sc}))
			if err != nil {
				return false
			}
			if ts, ok := v.TrustScore(); ok && (ts < 0 || ts > 100) {
				return false
			}
			_, err = valueobject.ClassificationFromString(v.Classification().String())
			return err == nil
		},
		score, score, score, status, status, status,
	))

	properties.Property("contributing plus missing equals registered", prop.ForAll(
		func(a, b, c float64, sa, sb, sc int) bool {
			v, err := evaluate(buildResults([3]float64{a, b, c}, [3]int{sa, sb, sc}))
			if err != nil {
				return false
			}
			fused := v.FusedScore()
			return len(fused.ContributingSignals())+len(fused.MissingSignals()) == 3
		},
		score, score, score, status, status, status,
	))

	properties.Property("degraded exactly when no signal is available", prop.ForAll(
		func(a, b, c float64, sa, sb, sc int) bool {
			v, err := evaluate(buildResults([3]float64{a, b, c}, [3]int{sa, sb, sc}))
			if err != nil {
				return false
			}
			noneAvailable := sa != 0 && sb != 0 && sc != 0
			if noneAvailable {
				return v.IsDegraded() && v.Classification() == valueobject.ClassificationSuspicious
			}
			return !v.IsDegraded()
		},
		score, score, score, status, status, status,
	))

	properties.Property("outcome is independent of completion order", prop.ForAll(
		func(a, b, c float64, sa, sb, sc int, perm int) bool {
			results := buildResults([3]float64{a, b, c}, [3]int{sa, sb, sc})
			p := permutations[perm]
			shuffled := []model.SignalResult{results[p[0]], results[p[1]], results[p[2]]}

			v1, err1 := evaluate(results)
			v2, err2 := evaluate(shuffled)
			if err1 != nil || err2 != nil {
				return false
			}
			s1, _ := v1.TrustScore()
			s2, _ := v2.TrustScore()
			return s1 == s2 &&
				v1.Classification() == v2.Classification() &&
				v1.Message() == v2.Message() &&
				v1.CitedSignal() == v2.CitedSignal()
		},
		score, score, score, status, status, status, gen.IntRange(0, len(permutations)-1),
	))

	properties.Property("an available counterfeit risk above 70 is always high-risk", prop.ForAll(
		func(a, b, c float64, sb, sc int) bool {
			v, err := evaluate(buildResults([3]float64{a, b, c}, [3]int{0, sb, sc}))
			if err != nil {
				return false
			}
			return v.Classification() == valueobject.ClassificationHighRisk
		},
		gen.Float64Range(70.01, 100), score, score, status, status,
	))

	properties.TestingRun(t)
}
