package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/trust-engine/internal/application/dto"
	"github.com/bibbank/trust-engine/internal/domain/port"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// GetAuditTrail returns recent audit records.
type GetAuditTrail struct {
	reader port.AuditReader
}

// NewGetAuditTrail creates a new GetAuditTrail use case.
func NewGetAuditTrail(reader port.AuditReader) *GetAuditTrail {
	return &GetAuditTrail{reader: reader}
}

// Execute lists audit records newest first, optionally filtered by product.
func (uc *GetAuditTrail) Execute(ctx context.Context, q dto.AuditQuery) ([]dto.AuditRecordResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	records, err := uc.reader.ListRecent(ctx, q.ProductID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	out := make([]dto.AuditRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.FromAuditRecord(r))
	}
	return out, nil
}
