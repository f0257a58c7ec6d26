package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/trust-engine/internal/application/fanout"
	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/service"
)

const tracerName = "github.com/bibbank/trust-engine/internal/application/usecase"

// EvaluateTrust runs one full evaluation: fan-out, fusion and classification.
// It implements dedup.Computer.
type EvaluateTrust struct {
	registry    *registry.Registry
	coordinator *fanout.Coordinator
	fusion      *service.Fusion
	classifier  *service.Classifier
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewEvaluateTrust creates a new EvaluateTrust use case.
func NewEvaluateTrust(
	reg *registry.Registry,
	coordinator *fanout.Coordinator,
	fusion *service.Fusion,
	classifier *service.Classifier,
	logger *slog.Logger,
) *EvaluateTrust {
	return &EvaluateTrust{
		registry:    reg,
		coordinator: coordinator,
		fusion:      fusion,
		classifier:  classifier,
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
	}
}

// Compute evaluates req against one registry snapshot. When no signal is
// available the result is a degraded verdict, not an error.
func (uc *EvaluateTrust) Compute(ctx context.Context, req model.EvaluationRequest) (model.Verdict, error) {
	ctx, span := uc.tracer.Start(ctx, "trust.evaluate", trace.WithAttributes(
		attribute.String("trust.product_id", req.ProductID()),
		attribute.String("trust.seller_id", req.SellerID()),
	))
	defer span.End()

	// One snapshot for both fan-out and fusion keeps weights consistent with
	// the evaluators that actually ran.
	snap := uc.registry.Snapshot()
	results := uc.coordinator.EvaluateSnapshot(ctx, snap, req)

	fused, err := uc.fusion.Fuse(results, snap.Weights())
	var insufficient *model.InsufficientSignalsError
	switch {
	case errors.As(err, &insufficient):
		uc.logger.Warn("no trust signals available, returning degraded verdict",
			"product_id", req.ProductID(),
			"seller_id", req.SellerID(),
			"missing", len(insufficient.Missing),
		)
		span.SetAttributes(attribute.Bool("trust.degraded", true))
		return uc.classifier.Degraded(req, results), nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "fusion failed")
		return model.Verdict{}, fmt.Errorf("failed to fuse signals: %w", err)
	}

	verdict, err := uc.classifier.Classify(req, fused)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return model.Verdict{}, fmt.Errorf("failed to classify: %w", err)
	}

	span.SetAttributes(
		attribute.Float64("trust.score", fused.TrustScore()),
		attribute.String("trust.classification", verdict.Classification().String()),
		attribute.Int("trust.missing_signals", len(fused.MissingSignals())),
	)
	return verdict, nil
}
