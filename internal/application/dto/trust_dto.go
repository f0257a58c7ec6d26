package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/trust-engine/internal/application/dedup"
	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/domain/model"
)

// TrustCheckRequest is the input DTO for the CheckTrust use case.
type TrustCheckRequest struct {
	ProductID string `json:"productId" validate:"required,max=256"`
	SellerID  string `json:"sellerId,omitempty" validate:"max=256"`
}

// SignalResponse is one evaluator outcome.
type SignalResponse struct {
	Detail     map[string]any `json:"detail,omitempty"`
	Score      *float64       `json:"score"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Confidence float64        `json:"confidence"`
	LatencyMS  int64          `json:"latencyMs"`
}

// TrustCheckResponse is the output DTO of a trust check. TrustScore is null
// for a degraded verdict.
type TrustCheckResponse struct {
	EvaluatedAt    time.Time        `json:"evaluatedAt"`
	TrustScore     *float64         `json:"trustScore"`
	Signals        []SignalResponse `json:"signals"`
	MissingSignals []string         `json:"missingSignals"`
	ProductID      string           `json:"productId"`
	SellerID       string           `json:"sellerId,omitempty"`
	Classification string           `json:"classification"`
	Message        string           `json:"message"`
	Source         string           `json:"source"`
	VerdictID      uuid.UUID        `json:"verdictId"`
	Degraded       bool             `json:"degraded"`
	Cached         bool             `json:"cached"`
}

// FromOutcome maps a dedup outcome to the response DTO.
func FromOutcome(out dedup.Outcome) TrustCheckResponse {
	v := out.Verdict
	fused := v.FusedScore()

	resp := TrustCheckResponse{
		VerdictID:      v.ID(),
		ProductID:      v.Request().ProductID(),
		SellerID:       v.Request().SellerID(),
		Classification: v.Classification().String(),
		Message:        v.Message(),
		Degraded:       v.IsDegraded(),
		Cached:         out.Source == dedup.SourceCache,
		Source:         string(out.Source),
		EvaluatedAt:    v.EvaluatedAt(),
		Signals:        make([]SignalResponse, 0, len(fused.Signals())),
		MissingSignals: make([]string, 0, len(fused.MissingSignals())),
	}
	if ts, ok := v.TrustScore(); ok {
		resp.TrustScore = &ts
	}
	for _, s := range fused.Signals() {
		resp.Signals = append(resp.Signals, fromSignal(s))
	}
	for _, name := range fused.MissingSignals() {
		resp.MissingSignals = append(resp.MissingSignals, name.String())
	}
	return resp
}

func fromSignal(s model.SignalResult) SignalResponse {
	r := SignalResponse{
		Name:       s.Name().String(),
		Status:     s.Status().String(),
		Confidence: s.Confidence(),
		Reason:     s.Reason(),
		LatencyMS:  s.Latency().Milliseconds(),
		Detail:     s.Detail(),
	}
	if score, ok := s.Score(); ok {
		r.Score = &score
	}
	return r
}

// AuditQuery is the input DTO for the GetAuditTrail use case.
type AuditQuery struct {
	ProductID string `json:"productId" validate:"max=256"`
	Limit     int    `json:"limit" validate:"gte=0,lte=500"`
}

// AuditRecordResponse is one audit entry.
type AuditRecordResponse struct {
	Timestamp      time.Time         `json:"timestamp"`
	TrustScore     *float64          `json:"trustScore"`
	SignalStatuses map[string]string `json:"signalStatuses"`
	ProductID      string            `json:"productId"`
	SellerID       string            `json:"sellerId,omitempty"`
	Classification string            `json:"classification"`
	ID             uuid.UUID         `json:"id"`
	VerdictID      uuid.UUID         `json:"verdictId"`
	Cached         bool              `json:"cached"`
}

// FromAuditRecord maps an audit record to its DTO.
func FromAuditRecord(r model.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:             r.ID(),
		VerdictID:      r.VerdictID(),
		Timestamp:      r.Timestamp(),
		ProductID:      r.ProductID(),
		SellerID:       r.SellerID(),
		Classification: r.Classification().String(),
		TrustScore:     r.TrustScore(),
		SignalStatuses: r.SignalStatuses(),
		Cached:         r.Cached(),
	}
}

// EvaluatorResponse describes one registered evaluator.
type EvaluatorResponse struct {
	Name     string  `json:"name"`
	Polarity string  `json:"polarity"`
	Weight   float64 `json:"weight"`
	Enabled  bool    `json:"enabled"`
}

// FromEntry maps a registry entry to its DTO.
func FromEntry(e registry.Entry) EvaluatorResponse {
	return EvaluatorResponse{
		Name:     e.Name.String(),
		Weight:   e.Weight,
		Polarity: e.Polarity.String(),
		Enabled:  e.Enabled,
	}
}

// UpdateEvaluatorRequest is the input DTO for the UpdateEvaluator use case.
// Absent fields are left unchanged.
type UpdateEvaluatorRequest struct {
	Weight  *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Enabled *bool    `json:"enabled,omitempty"`
	Name    string   `json:"-" validate:"required,max=64"`
}
