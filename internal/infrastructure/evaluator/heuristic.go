// Package evaluator provides the built-in heuristic detectors and an HTTP
// client for remote detectors.
package evaluator

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// Builtin pairs a heuristic detector with the signal it produces.
type Builtin struct {
	Name      valueobject.SignalName
	Evaluator port.Evaluator
}

// Builtins returns the heuristic detectors in their registration order.
func Builtins() []Builtin {
	return []Builtin{
		{Name: valueobject.SignalCounterfeit, Evaluator: Counterfeit{}},
		{Name: valueobject.SignalSellerRisk, Evaluator: SellerRisk{}},
		{Name: valueobject.SignalReviewAuthenticity, Evaluator: ReviewAuthenticity{}},
	}
}

// tier is the coarse risk band a subject falls into.
type tier int

const (
	tierClean tier = iota
	tierSuspicious
	tierHighRisk
)

var (
	highRiskMarkers   = []string{"fake", "suspicious"}
	suspiciousMarkers = []string{"warning", "caution"}
)

func classify(subject string) tier {
	s := strings.ToLower(subject)
	for _, m := range highRiskMarkers {
		if strings.Contains(s, m) {
			return tierHighRisk
		}
	}
	for _, m := range suspiciousMarkers {
		if strings.Contains(s, m) {
			return tierSuspicious
		}
	}
	return tierClean
}

// jitter returns a stable value in [0, 5) derived from the subject so that
// clean subjects do not all score identically.
func jitter(salt, subject string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write([]byte(subject))
	return float64(h.Sum32()%500) / 100
}

// Counterfeit scores the likelihood that a product is counterfeit.
type Counterfeit struct{}

func (Counterfeit) Evaluate(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SignalResult{}, err
	}

	var score float64
	switch classify(req.ProductID()) {
	case tierHighRisk:
		score = 85
	case tierSuspicious:
		score = 45
	default:
		score = 12 + jitter("counterfeit", req.ProductID())
	}
	return model.NewSignalResult(valueobject.SignalCounterfeit, score, 0.9, nil), nil
}

// SellerRisk scores the seller's fraud history. It keys on the seller when
// one is given and falls back to the product otherwise.
type SellerRisk struct{}

func (SellerRisk) Evaluate(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SignalResult{}, err
	}

	subject := req.SellerID()
	if subject == "" {
		subject = req.ProductID()
	}

	var (
		score      float64
		violations int
	)
	switch max(classify(req.ProductID()), classify(subject)) {
	case tierHighRisk:
		score, violations = 78, 23
	case tierSuspicious:
		score, violations = 52, 8
	default:
		j := jitter("seller", subject)
		score, violations = 8+j, int(j)%3
	}
	return model.NewSignalResult(valueobject.SignalSellerRisk, score, 0.8, map[string]any{
		"violations": violations,
	}), nil
}

const totalReviews = 156

// ReviewAuthenticity scores how genuine a product's reviews look. Higher is
// more authentic.
type ReviewAuthenticity struct{}

func (ReviewAuthenticity) Evaluate(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SignalResult{}, err
	}

	var (
		score   float64
		flagged int
	)
	switch classify(req.ProductID()) {
	case tierHighRisk:
		score, flagged = 34, 47
	case tierSuspicious:
		score, flagged = 73, 12
	default:
		score, flagged = 91-jitter("review", req.ProductID()), 3
	}
	return model.NewSignalResult(valueobject.SignalReviewAuthenticity, score, 0.85, map[string]any{
		"flaggedReviews": flagged,
		"totalReviews":   totalReviews,
	}), nil
}
