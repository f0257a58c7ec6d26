package model

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// AuditRecord is the append-only compliance entry written for every served
// trust check.
type AuditRecord struct {
	id             uuid.UUID
	verdictID      uuid.UUID
	timestamp      time.Time
	productID      string
	sellerID       string
	classification valueobject.Classification
	trustScore     *float64
	signalStatuses map[string]string
	cached         bool
}

// NewAuditRecord derives an audit record from a verdict. Cached marks a
// response served without a new fan-out.
func NewAuditRecord(v Verdict, cached bool, at time.Time) AuditRecord {
	statuses := make(map[string]string)
	for _, s := range v.FusedScore().Signals() {
		statuses[s.Name().String()] = s.Status().String()
	}

	var score *float64
	if ts, ok := v.TrustScore(); ok {
		score = &ts
	}

	return AuditRecord{
		id:             uuid.New(),
		verdictID:      v.ID(),
		timestamp:      at.UTC(),
		productID:      v.Request().ProductID(),
		sellerID:       v.Request().SellerID(),
		classification: v.Classification(),
		trustScore:     score,
		signalStatuses: statuses,
		cached:         cached,
	}
}

// ReconstructAuditRecord rebuilds an AuditRecord from persisted state.
func ReconstructAuditRecord(
	id, verdictID uuid.UUID,
	timestamp time.Time,
	productID, sellerID string,
	classification valueobject.Classification,
	trustScore *float64,
	signalStatuses map[string]string,
	cached bool,
) AuditRecord {
	return AuditRecord{
		id:             id,
		verdictID:      verdictID,
		timestamp:      timestamp,
		productID:      productID,
		sellerID:       sellerID,
		classification: classification,
		trustScore:     trustScore,
		signalStatuses: signalStatuses,
		cached:         cached,
	}
}

func (r AuditRecord) ID() uuid.UUID                              { return r.id }
func (r AuditRecord) VerdictID() uuid.UUID                       { return r.verdictID }
func (r AuditRecord) Timestamp() time.Time                       { return r.timestamp }
func (r AuditRecord) ProductID() string                          { return r.productID }
func (r AuditRecord) SellerID() string                           { return r.sellerID }
func (r AuditRecord) Classification() valueobject.Classification { return r.classification }
func (r AuditRecord) Cached() bool                               { return r.cached }

// TrustScore returns the recorded score; nil for degraded verdicts.
func (r AuditRecord) TrustScore() *float64 {
	if r.trustScore == nil {
		return nil
	}
	v := *r.trustScore
	return &v
}

// SignalStatuses returns signal name -> status.
func (r AuditRecord) SignalStatuses() map[string]string {
	return maps.Clone(r.signalStatuses)
}
