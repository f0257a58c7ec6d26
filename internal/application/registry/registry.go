// Package registry holds the process-wide set of signal evaluators and their
// fusion weights.
//
// The active set is an immutable Snapshot behind an atomic pointer. Every
// mutation builds a new Snapshot and swaps it in, so a request that took a
// snapshot keeps a consistent view while new requests see the update.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
	"github.com/bibbank/trust-engine/internal/domain/service"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// ErrUnknownEvaluator is returned when a mutation names an unregistered signal.
var ErrUnknownEvaluator = errors.New("unknown evaluator")

// Entry is one registered evaluator.
type Entry struct {
	Name      valueobject.SignalName
	Evaluator port.Evaluator
	Weight    float64
	Polarity  valueobject.Polarity
	Enabled   bool
}

// Snapshot is an immutable view of the registry.
type Snapshot struct {
	version uint64
	entries []Entry
}

// Version increases with every swap.
func (s *Snapshot) Version() uint64 { return s.version }

// Entries returns every registered evaluator, enabled or not, in registration order.
func (s *Snapshot) Entries() []Entry { return slices.Clone(s.entries) }

// Active returns the enabled evaluators in registration order.
func (s *Snapshot) Active() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Weights returns the fusion configuration of the active evaluators.
func (s *Snapshot) Weights() []service.SignalWeight {
	active := s.Active()
	out := make([]service.SignalWeight, 0, len(active))
	for _, e := range active {
		out = append(out, service.SignalWeight{Name: e.Name, Weight: e.Weight, Polarity: e.Polarity})
	}
	return out
}

// Option customises a registration.
type Option func(*Entry)

// WithPolarity overrides the signal's default polarity.
func WithPolarity(p valueobject.Polarity) Option {
	return func(e *Entry) { e.Polarity = p }
}

// Disabled registers the evaluator without activating it.
func Disabled() Option {
	return func(e *Entry) { e.Enabled = false }
}

// Setting is the mutable part of an entry, applied in bulk by Apply.
type Setting struct {
	Weight  *float64
	Enabled *bool
}

// Registry is safe for concurrent use. Readers never block; writers are
// serialised.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	r := &Registry{logger: logger}
	r.current.Store(&Snapshot{})
	return r
}

// Snapshot returns the current immutable view.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// List returns the current active set.
func (r *Registry) List() []Entry {
	return r.Snapshot().Active()
}

// Register adds an evaluator with a positive weight. Registering an existing
// name replaces that entry in place, keeping its registration position.
func (r *Registry) Register(name valueobject.SignalName, evaluator port.Evaluator, weight float64, opts ...Option) error {
	if name.IsZero() {
		return model.NewValidationError("signalName", "signal name is required")
	}
	if evaluator == nil {
		return model.NewValidationError("evaluator", fmt.Sprintf("evaluator for %s is nil", name))
	}
	if err := validateWeight(weight); err != nil {
		return err
	}

	entry := Entry{
		Name:      name,
		Evaluator: evaluator,
		Weight:    weight,
		Polarity:  name.DefaultPolarity(),
		Enabled:   true,
	}
	for _, opt := range opts {
		opt(&entry)
	}

	return r.swap(func(entries []Entry) ([]Entry, error) {
		if i := indexOf(entries, name); i >= 0 {
			entries[i] = entry
			return entries, nil
		}
		return append(entries, entry), nil
	}, "evaluator registered", "signal", name.String(), "weight", weight, "enabled", entry.Enabled)
}

// Unregister removes an evaluator.
func (r *Registry) Unregister(name valueobject.SignalName) error {
	return r.swap(func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEvaluator, name)
		}
		return slices.Delete(entries, i, i+1), nil
	}, "evaluator unregistered", "signal", name.String())
}

// SetEnabled enables or disables an evaluator without removing it.
func (r *Registry) SetEnabled(name valueobject.SignalName, enabled bool) error {
	return r.Update(name, Setting{Enabled: &enabled})
}

// SetWeight changes an evaluator's fusion weight.
func (r *Registry) SetWeight(name valueobject.SignalName, weight float64) error {
	return r.Update(name, Setting{Weight: &weight})
}

// Update applies a setting to one evaluator in a single swap.
func (r *Registry) Update(name valueobject.SignalName, s Setting) error {
	return r.Apply(map[valueobject.SignalName]Setting{name: s})
}

// Apply updates several evaluators atomically. Either every setting is
// applied or none is.
func (r *Registry) Apply(settings map[valueobject.SignalName]Setting) error {
	for name, s := range settings {
		if s.Weight != nil {
			if err := validateWeight(*s.Weight); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	return r.swap(func(entries []Entry) ([]Entry, error) {
		for name, s := range settings {
			i := indexOf(entries, name)
			if i < 0 {
				return nil, fmt.Errorf("%w: %s", ErrUnknownEvaluator, name)
			}
			if s.Weight != nil {
				entries[i].Weight = *s.Weight
			}
			if s.Enabled != nil {
				entries[i].Enabled = *s.Enabled
			}
		}
		return entries, nil
	}, "evaluator settings applied", "count", len(settings))
}

// swap copies the current entries, lets mutate edit the copy, and publishes
// the result as a new snapshot.
func (r *Registry) swap(mutate func([]Entry) ([]Entry, error), msg string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	next, err := mutate(slices.Clone(cur.entries))
	if err != nil {
		return err
	}

	r.current.Store(&Snapshot{version: cur.version + 1, entries: next})
	r.logger.Info(msg, append(args, "version", cur.version+1)...)
	return nil
}

func validateWeight(weight float64) error {
	if !(weight > 0) || math.IsInf(weight, 1) {
		return model.NewValidationError("weight", fmt.Sprintf("must be greater than zero, got %v", weight))
	}
	return nil
}

func indexOf(entries []Entry, name valueobject.SignalName) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.Name == name })
}
