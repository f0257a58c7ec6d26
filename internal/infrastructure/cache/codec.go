package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// entry is the cached form of a verdict.
type entry struct {
	Verdict    verdictRecord `json:"verdict"`
	ComputedAt time.Time     `json:"computed_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

type verdictRecord struct {
	ID             uuid.UUID            `json:"id"`
	ProductID      string               `json:"product_id"`
	SellerID       string               `json:"seller_id"`
	Classification string               `json:"classification"`
	Message        string               `json:"message"`
	TrustScore     float64              `json:"trust_score"`
	CitedSignal    string               `json:"cited_signal,omitempty"`
	Degraded       bool                 `json:"degraded"`
	EvaluatedAt    time.Time            `json:"evaluated_at"`
	Signals        []signalRecord       `json:"signals"`
	Contributions  []contributionRecord `json:"contributions"`
}

type signalRecord struct {
	Name       string         `json:"name"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Status     string         `json:"status"`
	Detail     map[string]any `json:"detail,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	LatencyMS  int64          `json:"latency_ms"`
}

type contributionRecord struct {
	Signal string  `json:"signal"`
	Trust  float64 `json:"trust"`
	Weight float64 `json:"weight"`
}

func encodeEntry(v model.Verdict, computedAt time.Time, ttl time.Duration) ([]byte, error) {
	fused := v.FusedScore()

	rec := verdictRecord{
		ID:             v.ID(),
		ProductID:      v.Request().ProductID(),
		SellerID:       v.Request().SellerID(),
		Classification: v.Classification().String(),
		Message:        v.Message(),
		TrustScore:     fused.TrustScore(),
		CitedSignal:    v.CitedSignal().String(),
		Degraded:       v.IsDegraded(),
		EvaluatedAt:    v.EvaluatedAt(),
	}
	for _, s := range fused.Signals() {
		score, _ := s.Score()
		rec.Signals = append(rec.Signals, signalRecord{
			Name:       s.Name().String(),
			Score:      score,
			Confidence: s.Confidence(),
			Status:     s.Status().String(),
			Detail:     s.Detail(),
			Reason:     s.Reason(),
			LatencyMS:  s.Latency().Milliseconds(),
		})
	}
	for _, c := range fused.Contributions() {
		rec.Contributions = append(rec.Contributions, contributionRecord{
			Signal: c.Signal().Name().String(),
			Trust:  c.Trust(),
			Weight: c.Weight(),
		})
	}

	return json.Marshal(entry{Verdict: rec, ComputedAt: computedAt.UTC(), ExpiresAt: computedAt.Add(ttl).UTC()})
}

func decodeEntry(data []byte) (model.Verdict, time.Time, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return model.Verdict{}, time.Time{}, fmt.Errorf("decode cache entry: %w", err)
	}
	rec := e.Verdict

	classification, err := valueobject.ClassificationFromString(rec.Classification)
	if err != nil {
		return model.Verdict{}, time.Time{}, fmt.Errorf("decode cache entry: %w", err)
	}

	signals := make([]model.SignalResult, 0, len(rec.Signals))
	byName := make(map[string]model.SignalResult, len(rec.Signals))
	for _, s := range rec.Signals {
		name, err := valueobject.NewSignalName(s.Name)
		if err != nil {
			return model.Verdict{}, time.Time{}, fmt.Errorf("decode cache entry: %w", err)
		}
		status, err := valueobject.SignalStatusFromString(s.Status)
		if err != nil {
			return model.Verdict{}, time.Time{}, fmt.Errorf("decode cache entry: %w", err)
		}
		result := model.ReconstructSignalResult(name, s.Score, s.Confidence, status, s.Detail, s.Reason,
			time.Duration(s.LatencyMS)*time.Millisecond)
		signals = append(signals, result)
		byName[s.Name] = result
	}

	contributions := make([]model.Contribution, 0, len(rec.Contributions))
	for _, c := range rec.Contributions {
		signal, ok := byName[c.Signal]
		if !ok {
			return model.Verdict{}, time.Time{}, fmt.Errorf("decode cache entry: contribution for unknown signal %q", c.Signal)
		}
		contributions = append(contributions, model.NewContribution(signal, c.Trust, c.Weight))
	}

	var cited valueobject.SignalName
	if rec.CitedSignal != "" {
		if cited, err = valueobject.NewSignalName(rec.CitedSignal); err != nil {
			return model.Verdict{}, time.Time{}, fmt.Errorf("decode cache entry: %w", err)
		}
	}

	v := model.ReconstructVerdict(
		rec.ID,
		model.ReconstructEvaluationRequest(rec.ProductID, rec.SellerID),
		classification,
		rec.Message,
		model.ReconstructFusedScore(rec.TrustScore, signals, contributions),
		cited,
		rec.Degraded,
		rec.EvaluatedAt,
	)
	return v, e.ExpiresAt, nil
}
