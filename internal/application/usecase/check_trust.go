package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/trust-engine/internal/application/dedup"
	"github.com/bibbank/trust-engine/internal/application/dto"
	"github.com/bibbank/trust-engine/internal/domain/event"
	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
)

// VerdictObserver receives one call per served trust check.
type VerdictObserver interface {
	ObserveVerdict(classification, source string, degraded bool)
}

type nopVerdictObserver struct{}

func (nopVerdictObserver) ObserveVerdict(string, string, bool) {}

// CheckTrust is the use case behind the public trust-check API.
type CheckTrust struct {
	layer     *dedup.Layer
	audit     port.AuditRecorder
	publisher port.EventPublisher
	observer  VerdictObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewCheckTrust creates a new CheckTrust use case. publisher and observer may
// be nil.
func NewCheckTrust(
	layer *dedup.Layer,
	audit port.AuditRecorder,
	publisher port.EventPublisher,
	observer VerdictObserver,
	logger *slog.Logger,
) *CheckTrust {
	if observer == nil {
		observer = nopVerdictObserver{}
	}
	return &CheckTrust{
		layer:     layer,
		audit:     audit,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute validates the request, obtains a verdict through the dedup layer,
// records an audit entry and, for fresh evaluations, publishes domain events.
//
// Errors are limited to validation failures (*model.ValidationError) and an
// unavailable cache (model.ErrCacheUnavailable). Evaluator failures degrade
// the verdict instead.
func (uc *CheckTrust) Execute(ctx context.Context, req dto.TrustCheckRequest) (dto.TrustCheckResponse, error) {
	// 1. Validate.
	evalReq, err := model.NewEvaluationRequest(req.ProductID, req.SellerID)
	if err != nil {
		return dto.TrustCheckResponse{}, err
	}

	// 2. Get or evaluate.
	out, err := uc.layer.GetOrEvaluate(ctx, evalReq)
	if err != nil {
		return dto.TrustCheckResponse{}, fmt.Errorf("failed to evaluate trust: %w", err)
	}
	v := out.Verdict

	// 3. Audit every served response. The recorder never blocks.
	uc.audit.Record(ctx, model.NewAuditRecord(v, out.Source != dedup.SourceComputed, uc.now()))

	// 4. Publish events for fresh evaluations only.
	if out.Source == dedup.SourceComputed && uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, event.FromVerdict(v)...); err != nil {
			uc.logger.Warn("failed to publish trust events",
				"verdict_id", v.ID().String(),
				"product_id", evalReq.ProductID(),
				"error", err,
			)
		}
	}

	uc.observer.ObserveVerdict(v.Classification().String(), string(out.Source), v.IsDegraded())
	return dto.FromOutcome(out), nil
}
