package port

import (
	"context"
	"time"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/pkg/events"
)

// Evaluator is implemented by every risk-signal provider.
type Evaluator interface {
	// Evaluate scores the subject. Implementations must return promptly once
	// ctx is done and release any resources they hold.
	Evaluate(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error)

// Evaluate calls f(ctx, req).
func (f EvaluatorFunc) Evaluate(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error) {
	return f(ctx, req)
}

// VerdictCache stores completed verdicts by subject key.
type VerdictCache interface {
	// Get returns the cached verdict for key. A miss is (zero, false, nil);
	// an error means the cache itself is unavailable.
	Get(ctx context.Context, key string) (model.Verdict, bool, error)

	// Set stores a verdict for key for at most ttl.
	Set(ctx context.Context, key string, v model.Verdict, ttl time.Duration) error
}

// AuditSink receives audit records. Writes must be idempotent per record ID
// because delivery is retried.
type AuditSink interface {
	Write(ctx context.Context, records ...model.AuditRecord) error
}

// AuditReader reads back recent audit records.
type AuditReader interface {
	// ListRecent returns up to limit records, newest first. An empty productID
	// matches every product.
	ListRecent(ctx context.Context, productID string, limit int) ([]model.AuditRecord, error)
}

// EventPublisher defines the interface for publishing domain events.
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.DomainEvent) error
}

// AuditRecorder accepts audit records for asynchronous delivery. Record must
// not block the request path.
type AuditRecorder interface {
	Record(ctx context.Context, rec model.AuditRecord)
}
