// Package audit delivers audit records to their sinks off the request path.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/port"
)

// Observer receives delivery outcomes.
type Observer interface {
	ObserveAudit(outcome string, n int)
	SetAuditQueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveAudit(string, int) {}
func (nopObserver) SetAuditQueueDepth(int)   {}

// DispatcherConfig tunes the delivery pipeline.
type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	BatchSize      int
	FlushInterval  time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	WriteTimeout   time.Duration
}

// DefaultDispatcherConfig returns production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      10_000,
		Workers:        2,
		BatchSize:      100,
		FlushInterval:  250 * time.Millisecond,
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// Dispatcher is a bounded, asynchronous AuditRecorder. Records are batched
// per worker and written with exponential backoff. When the queue is full a
// record is dropped and logged; Record never blocks.
type Dispatcher struct {
	cfg      DispatcherConfig
	sink     port.AuditSink
	queue    chan model.AuditRecord
	observer Observer
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     conc.WaitGroup
}

// NewDispatcher creates a Dispatcher and starts its workers.
func NewDispatcher(sink port.AuditSink, cfg DispatcherConfig, observer Observer, logger *slog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if observer == nil {
		observer = nopObserver{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		queue:    make(chan model.AuditRecord, cfg.QueueSize),
		observer: observer,
		logger:   logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Go(d.run)
	}
	return d
}

// Record implements port.AuditRecorder.
func (d *Dispatcher) Record(_ context.Context, rec model.AuditRecord) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(rec, "dispatcher closed")
		return
	}
	select {
	case d.queue <- rec:
		d.observer.SetAuditQueueDepth(len(d.queue))
	default:
		d.drop(rec, "queue full")
	}
}

func (d *Dispatcher) drop(rec model.AuditRecord, reason string) {
	d.observer.ObserveAudit("dropped", 1)
	d.logger.Error("audit record dropped",
		"reason", reason,
		"audit_id", rec.ID().String(),
		"verdict_id", rec.VerdictID().String(),
		"product_id", rec.ProductID(),
		"classification", rec.Classification().String(),
	)
}

// Close stops accepting records and waits until every queued record has been
// delivered or has exhausted its retries, or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit drain interrupted with %d records queued: %w", len(d.queue), ctx.Err())
	}
}

func (d *Dispatcher) run() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.AuditRecord, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		d.deliver(batch)
		batch = make([]model.AuditRecord, 0, d.cfg.BatchSize)
		d.observer.SetAuditQueueDepth(len(d.queue))
	}

	for {
		select {
		case rec, ok := <-d.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *Dispatcher) deliver(batch []model.AuditRecord) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.InitialBackoff
	policy.MaxInterval = d.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	attempt := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
		defer cancel()
		return d.sink.Write(ctx, batch...)
	}
	notify := func(err error, wait time.Duration) {
		d.observer.ObserveAudit("retried", len(batch))
		d.logger.Warn("audit write failed, retrying",
			"records", len(batch),
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(attempt, backoff.WithMaxRetries(policy, d.cfg.MaxRetries), notify); err != nil {
		d.observer.ObserveAudit("failed", len(batch))
		ids := make([]string, len(batch))
		for i, rec := range batch {
			ids[i] = rec.ID().String()
		}
		d.logger.Error("audit records lost after retries",
			"records", len(batch),
			"audit_ids", ids,
			"error", err,
		)
		return
	}
	d.observer.ObserveAudit("delivered", len(batch))
}
