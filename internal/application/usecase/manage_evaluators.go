package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/trust-engine/internal/application/dto"
	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// ListEvaluators describes every registered evaluator.
type ListEvaluators struct {
	registry *registry.Registry
}

// NewListEvaluators creates a new ListEvaluators use case.
func NewListEvaluators(reg *registry.Registry) *ListEvaluators {
	return &ListEvaluators{registry: reg}
}

// Execute returns every evaluator, enabled or not, in registration order.
func (uc *ListEvaluators) Execute(_ context.Context) []dto.EvaluatorResponse {
	entries := uc.registry.Snapshot().Entries()
	out := make([]dto.EvaluatorResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FromEntry(e))
	}
	return out
}

// UpdateEvaluator changes the weight or enabled flag of one evaluator.
type UpdateEvaluator struct {
	registry *registry.Registry
}

// NewUpdateEvaluator creates a new UpdateEvaluator use case.
func NewUpdateEvaluator(reg *registry.Registry) *UpdateEvaluator {
	return &UpdateEvaluator{registry: reg}
}

// Execute applies the update in one registry swap and returns the new state.
// An unregistered name yields registry.ErrUnknownEvaluator.
func (uc *UpdateEvaluator) Execute(_ context.Context, req dto.UpdateEvaluatorRequest) (dto.EvaluatorResponse, error) {
	name, err := valueobject.NewSignalName(req.Name)
	if err != nil {
		return dto.EvaluatorResponse{}, model.NewValidationError("name", err.Error())
	}
	if req.Weight == nil && req.Enabled == nil {
		return dto.EvaluatorResponse{}, model.NewValidationError("body", "weight or enabled is required")
	}

	if err := uc.registry.Update(name, registry.Setting{Weight: req.Weight, Enabled: req.Enabled}); err != nil {
		return dto.EvaluatorResponse{}, fmt.Errorf("failed to update evaluator: %w", err)
	}

	for _, e := range uc.registry.Snapshot().Entries() {
		if e.Name == name {
			return dto.FromEntry(e), nil
		}
	}
	return dto.EvaluatorResponse{}, fmt.Errorf("%w: %s", registry.ErrUnknownEvaluator, name)
}
