// Package breaker wraps sony/gobreaker with logging and a Prometheus state gauge.
package breaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	Name string
	// MinRequests is the number of calls in the current window before the
	// failure ratio is considered.
	MinRequests uint32
	// FailureRatio trips the breaker once reached.
	FailureRatio float64
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probe calls allowed while half-open.
	HalfOpenRequests uint32
	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration
}

// DefaultSettings returns the settings used for remote dependencies.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MinRequests:      10,
		FailureRatio:     0.6,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
		Interval:         time.Minute,
	}
}

// Breaker guards calls to a remote dependency.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a Breaker. state may be nil; when set it receives the numeric
// gobreaker state (0 closed, 1 half-open, 2 open) labelled by name.
func New(st Settings, state *prometheus.GaugeVec, logger *slog.Logger) *Breaker {
	if st.MinRequests == 0 {
		st.MinRequests = 10
	}
	if st.FailureRatio <= 0 {
		st.FailureRatio = 0.6
	}

	gs := gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.HalfOpenRequests,
		Interval:    st.Interval,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < st.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= st.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if state != nil {
				state.WithLabelValues(name).Set(float64(to))
			}
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(gs)}
}

// Execute runs fn unless the breaker is open.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
