package audit

import (
	"time"

	"github.com/bibbank/trust-engine/internal/domain/model"
)

// payload is the wire form of an audit record.
type payload struct {
	Timestamp      time.Time         `json:"timestamp"`
	TrustScore     *float64          `json:"trust_score"`
	SignalStatuses map[string]string `json:"signal_statuses"`
	ID             string            `json:"id"`
	VerdictID      string            `json:"verdict_id"`
	ProductID      string            `json:"product_id"`
	SellerID       string            `json:"seller_id,omitempty"`
	Classification string            `json:"classification"`
	Cached         bool              `json:"cached"`
}

func toPayload(rec model.AuditRecord) payload {
	return payload{
		ID:             rec.ID().String(),
		VerdictID:      rec.VerdictID().String(),
		Timestamp:      rec.Timestamp(),
		ProductID:      rec.ProductID(),
		SellerID:       rec.SellerID(),
		Classification: rec.Classification().String(),
		TrustScore:     rec.TrustScore(),
		SignalStatuses: rec.SignalStatuses(),
		Cached:         rec.Cached(),
	}
}
