package event

import (
	"time"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
	"github.com/bibbank/trust-engine/pkg/events"
)

const (
	// EventTypeTrustCheckCompleted is emitted when a fresh verdict is computed.
	EventTypeTrustCheckCompleted = "trust.check.completed"

	// EventTypeHighRiskDetected is emitted when a product is classified high-risk.
	EventTypeHighRiskDetected = "trust.high_risk.detected"

	aggregateTypeProduct = "Product"
)

// TrustCheckCompleted is published when a verdict has been computed for a
// product/seller pair.
type TrustCheckCompleted struct {
	events.BaseEvent
	VerdictID      string            `json:"verdict_id"`
	ProductID      string            `json:"product_id"`
	SellerID       string            `json:"seller_id,omitempty"`
	Classification string            `json:"classification"`
	TrustScore     *float64          `json:"trust_score"`
	Degraded       bool              `json:"degraded"`
	SignalStatuses map[string]string `json:"signal_statuses"`
	EvaluatedAt    time.Time         `json:"evaluated_at"`
}

// HighRiskDetected is published when a verdict classifies a product as
// high-risk, so that downstream workflows (listing review, refunds) can react.
type HighRiskDetected struct {
	events.BaseEvent
	VerdictID   string   `json:"verdict_id"`
	ProductID   string   `json:"product_id"`
	SellerID    string   `json:"seller_id,omitempty"`
	TrustScore  float64  `json:"trust_score"`
	CitedSignal string   `json:"cited_signal"`
	Message     string   `json:"message"`
	Missing     []string `json:"missing_signals"`
}

// FromVerdict derives the events published for a freshly computed verdict.
func FromVerdict(v model.Verdict) []events.DomainEvent {
	req := v.Request()
	fused := v.FusedScore()

	statuses := make(map[string]string)
	for _, s := range fused.Signals() {
		statuses[s.Name().String()] = s.Status().String()
	}

	var score *float64
	if ts, ok := v.TrustScore(); ok {
		score = &ts
	}

	out := []events.DomainEvent{
		TrustCheckCompleted{
			BaseEvent:      events.NewBaseEvent(EventTypeTrustCheckCompleted, req.ProductID(), aggregateTypeProduct),
			VerdictID:      v.ID().String(),
			ProductID:      req.ProductID(),
			SellerID:       req.SellerID(),
			Classification: v.Classification().String(),
			TrustScore:     score,
			Degraded:       v.IsDegraded(),
			SignalStatuses: statuses,
			EvaluatedAt:    v.EvaluatedAt(),
		},
	}

	if v.Classification() == valueobject.ClassificationHighRisk {
		missing := make([]string, 0)
		for _, n := range fused.MissingSignals() {
			missing = append(missing, n.String())
		}
		out = append(out, HighRiskDetected{
			BaseEvent:   events.NewBaseEvent(EventTypeHighRiskDetected, req.ProductID(), aggregateTypeProduct),
			VerdictID:   v.ID().String(),
			ProductID:   req.ProductID(),
			SellerID:    req.SellerID(),
			TrustScore:  fused.TrustScore(),
			CitedSignal: v.CitedSignal().String(),
			Message:     v.Message(),
			Missing:     missing,
		})
	}

	return out
}
