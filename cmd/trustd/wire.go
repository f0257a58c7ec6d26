package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/domain/port"
	"github.com/bibbank/trust-engine/internal/domain/service"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
	"github.com/bibbank/trust-engine/internal/infrastructure/audit"
	"github.com/bibbank/trust-engine/internal/infrastructure/cache"
	"github.com/bibbank/trust-engine/internal/infrastructure/config"
	"github.com/bibbank/trust-engine/internal/infrastructure/evaluator"
	"github.com/bibbank/trust-engine/internal/infrastructure/messaging"
	"github.com/bibbank/trust-engine/internal/infrastructure/postgres"
	"github.com/bibbank/trust-engine/internal/presentation/rest"
	"github.com/bibbank/trust-engine/pkg/breaker"
	"github.com/bibbank/trust-engine/pkg/kafka"
	"github.com/bibbank/trust-engine/pkg/observability"
	pkgpostgres "github.com/bibbank/trust-engine/pkg/postgres"
)

const memoryAuditCapacity = 10_000

// infrastructure holds the adapters whose lifetime spans the process.
type infrastructure struct {
	local       *cache.LocalCache
	remote      *cache.RedisCache
	cache       *cache.TieredCache
	auditRepo   *postgres.AuditRepository
	auditReader port.AuditReader
	dispatcher  *audit.Dispatcher
	producer    *kafka.Producer
	publisher   port.EventPublisher
	closers     []func()
}

func newInfrastructure(ctx context.Context, cfg *config.Config, metrics *observability.TrustMetrics, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	ok := false
	defer func() {
		if !ok {
			infra.close(logger)
		}
	}()

	// Verdict cache.
	local, err := cache.NewLocalCache(ctx, cache.LocalConfig{
		TTL:       cfg.Cache.TTL,
		MaxSizeMB: cfg.Cache.MaxSizeMB,
		Shards:    cfg.Cache.Shards,
	})
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}
	infra.local = local
	infra.closers = append(infra.closers, func() { _ = local.Close() })

	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		infra.closers = append(infra.closers, func() { _ = client.Close() })
		b := breaker.New(breaker.DefaultSettings("redis"), metrics.BreakerState, logger)
		infra.remote = cache.NewRedisCache(client, b)
		logger.Info("shared verdict cache enabled", "addr", cfg.Cache.RedisAddr)
	}
	infra.cache = cache.NewTieredCache(infra.local, infra.remote)

	// Kafka.
	if len(cfg.Kafka.Brokers) > 0 && (cfg.Audit.Sink == "kafka" || cfg.Kafka.PublishEvents) {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:       cfg.Kafka.Brokers,
			WriteTimeout:  cfg.Kafka.WriteTimeout,
			TLS:           cfg.Kafka.TLS,
			CAFile:        cfg.Kafka.CAFile,
			SASLEnabled:   cfg.Kafka.SASLEnabled,
			SASLMechanism: cfg.Kafka.SASLMechanism,
			SASLUsername:  cfg.Kafka.SASLUsername,
			SASLPassword:  cfg.Kafka.SASLPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		infra.producer = producer
		infra.closers = append(infra.closers, func() { _ = producer.Close() })
		if cfg.Kafka.PublishEvents {
			infra.publisher = messaging.NewPublisher(producer, logger)
		}
	}

	// Audit pipeline.
	sink, err := infra.auditSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	infra.dispatcher = audit.NewDispatcher(sink, audit.DispatcherConfig{
		QueueSize:     cfg.Audit.QueueSize,
		Workers:       cfg.Audit.Workers,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
		MaxRetries:    cfg.Audit.MaxRetries,
	}, metrics, logger)

	ok = true
	return infra, nil
}

// auditSink builds the configured sink and the reader behind GET /v1/audit.
// Without postgres, reads are served from an in-memory ring buffer.
func (i *infrastructure) auditSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.AuditSink, error) {
	switch cfg.Audit.Sink {
	case "postgres":
		if cfg.Database.RunMigrations {
			if err := pkgpostgres.RunMigrations(cfg.Database.URL, postgres.Migrations()); err != nil {
				return nil, fmt.Errorf("migrate audit store: %w", err)
			}
		}
		pool, err := pkgpostgres.NewPool(ctx, pkgpostgres.Config{
			URL:             cfg.Database.URL,
			ApplicationName: "trust-engine",
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect audit store: %w", err)
		}
		i.closers = append(i.closers, pool.Close)
		logger.Info("connected to audit store")

		i.auditRepo = postgres.NewAuditRepository(pool)
		i.auditReader = i.auditRepo
		return i.auditRepo, nil
	case "kafka":
		memory := audit.NewMemoryStore(memoryAuditCapacity)
		i.auditReader = memory
		return audit.NewFanoutSink(audit.NewKafkaSink(i.producer, cfg.Audit.Topic), memory), nil
	default:
		memory := audit.NewMemoryStore(memoryAuditCapacity)
		i.auditReader = memory
		return audit.NewFanoutSink(audit.NewLogSink(logger), memory), nil
	}
}

func (i *infrastructure) readinessChecks() map[string]rest.Checker {
	checks := map[string]rest.Checker{"cache": i.cache.Ping}
	if i.auditRepo != nil {
		checks["audit_store"] = i.auditRepo.Ping
	}
	return checks
}

// close releases adapters in reverse order of creation.
func (i *infrastructure) close(logger *slog.Logger) {
	for idx := len(i.closers) - 1; idx >= 0; idx-- {
		i.closers[idx]()
	}
	logger.Debug("infrastructure closed")
}

// registerEvaluators registers the heuristic detectors, then any remote
// detectors and overrides from configuration.
func registerEvaluators(reg *registry.Registry, cfg *config.Config, breakerState *prometheus.GaugeVec, logger *slog.Logger) error {
	for _, b := range evaluator.Builtins() {
		if err := reg.Register(b.Name, b.Evaluator, 1); err != nil {
			return fmt.Errorf("register %s: %w", b.Name, err)
		}
	}

	for _, ec := range cfg.Evaluators {
		if ec.Endpoint == "" {
			continue
		}
		name, err := valueobject.NewSignalName(ec.Name)
		if err != nil {
			return fmt.Errorf("evaluator %q: %w", ec.Name, err)
		}
		client, err := evaluator.NewHTTPClient(ec.CAFile)
		if err != nil {
			return fmt.Errorf("evaluator %q: %w", ec.Name, err)
		}

		var opts []registry.Option
		if ec.Polarity != "" {
			polarity, err := valueobject.PolarityFromString(ec.Polarity)
			if err != nil {
				return fmt.Errorf("evaluator %q: %w", ec.Name, err)
			}
			opts = append(opts, registry.WithPolarity(polarity))
		}
		weight := 1.0
		if ec.Weight != nil {
			weight = *ec.Weight
		}

		b := breaker.New(breaker.DefaultSettings("evaluator_"+ec.Name), breakerState, logger)
		if err := reg.Register(name, evaluator.NewRemote(name, ec.Endpoint, client, b), weight, opts...); err != nil {
			return fmt.Errorf("register %s: %w", ec.Name, err)
		}
		logger.Info("remote evaluator registered", "signal", ec.Name, "endpoint", ec.Endpoint)
	}

	applyEvaluatorSettings(reg, cfg.Evaluators, logger)
	return nil
}

// applyEvaluatorSettings swaps in configured weights and enabled flags in
// one registry update. Names that are not registered are skipped; new
// remote endpoints take effect only on restart.
func applyEvaluatorSettings(reg *registry.Registry, evaluators []config.EvaluatorConfig, logger *slog.Logger) {
	registered := make(map[valueobject.SignalName]bool)
	for _, e := range reg.Snapshot().Entries() {
		registered[e.Name] = true
	}

	settings := make(map[valueobject.SignalName]registry.Setting)
	for _, ec := range evaluators {
		name, err := valueobject.NewSignalName(ec.Name)
		if err != nil || !registered[name] {
			logger.Warn("skipping settings for unregistered evaluator", "signal", ec.Name)
			continue
		}
		if ec.Weight == nil && ec.Enabled == nil {
			continue
		}
		settings[name] = registry.Setting{Weight: ec.Weight, Enabled: ec.Enabled}
	}
	if len(settings) == 0 {
		return
	}

	if err := reg.Apply(settings); err != nil {
		logger.Error("failed to apply evaluator settings", "error", err)
		return
	}
	logger.Info("evaluator settings applied", "count", len(settings), "version", reg.Snapshot().Version())
}

func classifierConfig(c config.ClassifierConfig) (service.ClassifierConfig, error) {
	out := service.ClassifierConfig{
		TrustworthyMin: c.TrustworthyMin,
		SuspiciousMin:  c.SuspiciousMin,
		OverrideBelow:  c.OverrideBelow,
	}
	if c.OverrideSignal != "" {
		name, err := valueobject.NewSignalName(c.OverrideSignal)
		if err != nil {
			return service.ClassifierConfig{}, fmt.Errorf("classifier override signal: %w", err)
		}
		out.OverrideSignal = name
	}
	if err := out.Validate(); err != nil {
		return service.ClassifierConfig{}, fmt.Errorf("classifier config: %w", err)
	}
	return out, nil
}
