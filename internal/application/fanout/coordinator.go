// Package fanout invokes every registered evaluator concurrently for one
// request and collects partial results under per-evaluator and overall deadlines.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/domain/model"
)

const (
	DefaultEvaluatorTimeout = 500 * time.Millisecond
	DefaultOverallTimeout   = 1500 * time.Millisecond
)

// Config holds the coordinator deadlines.
type Config struct {
	EvaluatorTimeout time.Duration
	OverallTimeout   time.Duration
}

// DefaultConfig returns the default deadlines.
func DefaultConfig() Config {
	return Config{
		EvaluatorTimeout: DefaultEvaluatorTimeout,
		OverallTimeout:   DefaultOverallTimeout,
	}
}

// Observer receives one call per finished evaluator invocation.
type Observer interface {
	ObserveSignal(signal, status string, latency time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveSignal(string, string, time.Duration) {}

// Coordinator runs the fan-out step.
type Coordinator struct {
	registry *registry.Registry
	cfg      Config
	observer Observer
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator. Non-positive deadlines fall back to
// the defaults.
func NewCoordinator(reg *registry.Registry, cfg Config, observer Observer, logger *slog.Logger) *Coordinator {
	if cfg.EvaluatorTimeout <= 0 {
		cfg.EvaluatorTimeout = DefaultEvaluatorTimeout
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = DefaultOverallTimeout
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{registry: reg, cfg: cfg, observer: observer, logger: logger}
}

// Evaluate runs every active evaluator of the current registry snapshot.
func (c *Coordinator) Evaluate(ctx context.Context, req model.EvaluationRequest) []model.SignalResult {
	return c.EvaluateSnapshot(ctx, c.registry.Snapshot(), req)
}

// EvaluateSnapshot runs every active evaluator of snap concurrently and
// returns exactly one result per evaluator, in registration order. It
// returns when all evaluators have answered or the overall deadline passes;
// evaluators still outstanding at that point are recorded as timeouts and
// their contexts are cancelled.
func (c *Coordinator) EvaluateSnapshot(ctx context.Context, snap *registry.Snapshot, req model.EvaluationRequest) []model.SignalResult {
	entries := snap.Active()
	results := make([]model.SignalResult, len(entries))
	if len(entries) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.OverallTimeout)
	defer cancel()

	type indexed struct {
		idx    int
		result model.SignalResult
	}

	// Buffered so that evaluators finishing after the deadline never block.
	done := make(chan indexed, len(entries))
	started := time.Now()
	for i, entry := range entries {
		go func() {
			done <- indexed{idx: i, result: c.invoke(ctx, entry, req)}
		}()
	}

	received := make([]bool, len(entries))
	for remaining := len(entries); remaining > 0; remaining-- {
		select {
		case r := <-done:
			results[r.idx] = r.result
			received[r.idx] = true
			c.observer.ObserveSignal(r.result.Name().String(), r.result.Status().String(), r.result.Latency())
		case <-ctx.Done():
			elapsed := time.Since(started)
			for i, entry := range entries {
				if received[i] {
					continue
				}
				results[i] = model.TimeoutResult(entry.Name, elapsed)
				c.observer.ObserveSignal(entry.Name.String(), results[i].Status().String(), elapsed)
				c.logger.Warn("evaluator outstanding at overall deadline",
					"signal", entry.Name.String(),
					"product_id", req.ProductID(),
					"elapsed", elapsed,
				)
			}
			return results
		}
	}

	return results
}

// invoke runs one evaluator under its own deadline and folds every failure
// mode (error, deadline, panic) into a SignalResult.
func (c *Coordinator) invoke(parent context.Context, entry registry.Entry, req model.EvaluationRequest) model.SignalResult {
	ctx, cancel := context.WithTimeout(parent, c.cfg.EvaluatorTimeout)
	defer cancel()

	var (
		result  model.SignalResult
		err     error
		catcher panics.Catcher
	)
	start := time.Now()
	catcher.Try(func() {
		result, err = entry.Evaluator.Evaluate(ctx, req)
	})
	latency := time.Since(start)

	switch {
	case catcher.Recovered() != nil:
		recovered := catcher.Recovered()
		c.logger.Error("evaluator panicked",
			"signal", entry.Name.String(),
			"panic", fmt.Sprint(recovered.Value),
		)
		result = model.ErrorResult(entry.Name, recovered.AsError(), latency)
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		result = model.TimeoutResult(entry.Name, latency)
		if parent.Err() == nil {
			c.logger.Warn("evaluator timed out",
				"signal", entry.Name.String(),
				"product_id", req.ProductID(),
				"latency", latency,
			)
		}
	case err != nil:
		evErr := &model.EvaluatorError{Signal: entry.Name, Err: err}
		result = model.ErrorResult(entry.Name, evErr, latency)
		c.logger.Warn("evaluator failed",
			"signal", entry.Name.String(),
			"product_id", req.ProductID(),
			"error", evErr,
		)
	default:
		result = result.WithName(entry.Name).WithLatency(latency).Normalized()
	}

	return result
}
