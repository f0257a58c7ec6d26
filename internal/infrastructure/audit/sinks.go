package audit

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
)

// LogSink writes each record as one structured log line. It is the default
// sink when no store is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Write implements port.AuditSink.
func (s *LogSink) Write(ctx context.Context, records ...model.AuditRecord) error {
	for _, rec := range records {
		p := toPayload(rec)
		attrs := []any{
			"audit_id", p.ID,
			"verdict_id", p.VerdictID,
			"timestamp", p.Timestamp,
			"product_id", p.ProductID,
			"seller_id", p.SellerID,
			"classification", p.Classification,
			"signal_statuses", p.SignalStatuses,
			"cached", p.Cached,
		}
		if p.TrustScore != nil {
			attrs = append(attrs, "trust_score", *p.TrustScore)
		}
		s.logger.InfoContext(ctx, "trust check audited", attrs...)
	}
	return nil
}

// FanoutSink writes every batch to all of its sinks. A failure of one sink
// does not stop the others; the joined error triggers a retry of the whole
// batch, which sinks absorb by record ID.
type FanoutSink struct {
	sinks []port.AuditSink
}

// NewFanoutSink creates a FanoutSink.
func NewFanoutSink(sinks ...port.AuditSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// Write implements port.AuditSink.
func (s *FanoutSink) Write(ctx context.Context, records ...model.AuditRecord) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, records...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryStore keeps the most recent records in a fixed-size ring. It serves
// the audit lookup when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	ring    []model.AuditRecord
	next    int
	full    bool
	present map[uuid.UUID]struct{}
}

// NewMemoryStore creates a MemoryStore holding up to capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{
		ring:    make([]model.AuditRecord, capacity),
		present: make(map[uuid.UUID]struct{}, capacity),
	}
}

// Write implements port.AuditSink. Records already stored are skipped.
func (s *MemoryStore) Write(_ context.Context, records ...model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if _, dup := s.present[rec.ID()]; dup {
			continue
		}
		if s.full {
			delete(s.present, s.ring[s.next].ID())
		}
		s.ring[s.next] = rec
		s.present[rec.ID()] = struct{}{}
		s.next = (s.next + 1) % len(s.ring)
		if s.next == 0 {
			s.full = true
		}
	}
	return nil
}

// ListRecent implements port.AuditReader.
func (s *MemoryStore) ListRecent(_ context.Context, productID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.ring)
	}

	out := make([]model.AuditRecord, 0, min(limit, n))
	for i := 1; i <= n && len(out) < limit; i++ {
		rec := s.ring[(s.next-i+len(s.ring))%len(s.ring)]
		if productID != "" && rec.ProductID() != productID {
			continue
		}
		out = append(out, rec)
	}
	return slices.Clip(out), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.present)
}
