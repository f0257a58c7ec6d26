// Package dedup serves recent verdicts from cache and collapses concurrent
// evaluations of the same subject into one.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/singleflight"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
)

// DefaultTTL is how long a completed verdict is served from cache.
const DefaultTTL = 5 * time.Minute

// Computer produces a fresh verdict. Implemented by the evaluation use case.
type Computer interface {
	Compute(ctx context.Context, req model.EvaluationRequest) (model.Verdict, error)
}

// Source tells how a verdict was obtained.
type Source string

const (
	// SourceComputed means this caller ran the evaluation.
	SourceComputed Source = "computed"
	// SourceShared means this caller joined an evaluation already in flight.
	SourceShared Source = "shared"
	// SourceCache means the verdict came from cache without any evaluation.
	SourceCache Source = "cache"
)

// Outcome is a verdict together with its source.
type Outcome struct {
	Verdict model.Verdict
	Source  Source
}

// Observer receives cache lookup outcomes ("hit" or "miss").
type Observer interface {
	ObserveCache(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveCache(string) {}

// Layer implements get-or-evaluate with single-flight semantics per
// (productID, sellerID).
type Layer struct {
	cache    port.VerdictCache
	computer Computer
	ttl      time.Duration
	group    singleflight.Group
	observer Observer
	logger   *slog.Logger
}

// NewLayer creates a Layer. A non-positive ttl uses DefaultTTL.
func NewLayer(cache port.VerdictCache, computer Computer, ttl time.Duration, observer Observer, logger *slog.Logger) *Layer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Layer{
		cache:    cache,
		computer: computer,
		ttl:      ttl,
		observer: observer,
		logger:   logger,
	}
}

// GetOrEvaluate returns the cached verdict for req or evaluates it. At most
// one evaluation per key runs at a time; concurrent callers for the same key
// wait for it and receive the same verdict. A caller whose ctx ends stops
// waiting, but the shared evaluation continues for the others.
//
// Only cache failures are returned as errors (wrapping model.ErrCacheUnavailable).
func (l *Layer) GetOrEvaluate(ctx context.Context, req model.EvaluationRequest) (Outcome, error) {
	key := req.Key()

	v, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		return Outcome{}, err
	}
	if ok {
		l.observer.ObserveCache("hit")
		return Outcome{Verdict: v, Source: SourceCache}, nil
	}
	l.observer.ObserveCache("miss")

	// The flight is detached from the leader's cancellation; it is bounded by
	// the fan-out deadlines instead.
	flightCtx := context.WithoutCancel(ctx)
	var led bool
	ch := l.group.DoChan(key, func() (any, error) {
		led = true
		return l.evaluate(flightCtx, req, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Outcome{}, res.Err
		}
		out := res.Val.(Outcome)
		if !led {
			out.Source = SourceShared
		}
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// evaluate runs inside the flight. The flight's key is released when it
// returns, on every path.
func (l *Layer) evaluate(ctx context.Context, req model.EvaluationRequest, key string) (out Outcome, err error) {
	// A flight that finished between our miss and acquiring the key may
	// already have stored the verdict.
	if v, ok, err := l.cache.Get(ctx, key); err != nil {
		return Outcome{}, err
	} else if ok {
		return Outcome{Verdict: v, Source: SourceCache}, nil
	}

	var (
		v       model.Verdict
		catcher panics.Catcher
	)
	catcher.Try(func() {
		v, err = l.computer.Compute(ctx, req)
	})
	if r := catcher.Recovered(); r != nil {
		return Outcome{}, fmt.Errorf("evaluation panicked: %w", r.AsError())
	}
	if err != nil {
		return Outcome{}, err
	}

	// Degraded verdicts are not cached so that recovered evaluators are
	// consulted on the next request.
	if !v.IsDegraded() {
		if err := l.cache.Set(ctx, key, v, l.ttl); err != nil {
			l.logger.Warn("failed to cache verdict",
				"product_id", req.ProductID(),
				"seller_id", req.SellerID(),
				"error", err,
			)
		}
	}

	return Outcome{Verdict: v, Source: SourceComputed}, nil
}
