package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/bibbank/trust-engine/internal/application/dedup"
	"github.com/bibbank/trust-engine/internal/application/fanout"
	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/application/usecase"
	"github.com/bibbank/trust-engine/internal/domain/service"
	"github.com/bibbank/trust-engine/internal/infrastructure/config"
	grpcpresentation "github.com/bibbank/trust-engine/internal/presentation/grpc"
	"github.com/bibbank/trust-engine/internal/presentation/rest"
	"github.com/bibbank/trust-engine/pkg/observability"
)

const serviceName = "trust-engine"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("trust-engine exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := observability.InitLogger(observability.LogConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Service:    serviceName,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	logger.Info("starting trust-engine",
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"audit_sink", cfg.Audit.Sink,
	)

	// Initialize tracing.
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracer(flushCtx); err != nil {
				logger.Warn("tracer shutdown error", "error", err)
			}
		}()
	}

	// Initialize metrics.
	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: serviceName})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	otel.SetMeterProvider(meterProvider)
	defer meterProvider.Shutdown(context.Background())
	metrics := observability.NewTrustMetrics(prometheus.DefaultRegisterer)

	// Wire the evaluator registry.
	reg := registry.New(logger)
	if err := registerEvaluators(reg, cfg, metrics.BreakerState, logger); err != nil {
		return err
	}
	if cfgFile := os.Getenv(config.EnvConfigFile); cfgFile != "" {
		err := config.Watch(cfgFile, logger, func(next *config.Config) {
			applyEvaluatorSettings(reg, next.Evaluators, logger)
		})
		if err != nil {
			return err
		}
	}

	// Wire infrastructure adapters.
	infra, err := newInfrastructure(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer infra.close(logger)

	// Wire domain services.
	classifierCfg, err := classifierConfig(cfg.Classifier)
	if err != nil {
		return err
	}
	fusion := service.NewFusion()
	classifier := service.NewClassifier(classifierCfg)

	// Wire use cases.
	coordinator := fanout.NewCoordinator(reg, fanout.Config{
		EvaluatorTimeout: cfg.Fanout.EvaluatorTimeout,
		OverallTimeout:   cfg.Fanout.OverallTimeout,
	}, metrics, logger)
	evaluateTrustUC := usecase.NewEvaluateTrust(reg, coordinator, fusion, classifier, logger)
	layer := dedup.NewLayer(infra.cache, evaluateTrustUC, cfg.Cache.TTL, metrics, logger)
	checkTrustUC := usecase.NewCheckTrust(layer, infra.dispatcher, infra.publisher, metrics, logger)
	getAuditTrailUC := usecase.NewGetAuditTrail(infra.auditReader)
	listEvaluatorsUC := usecase.NewListEvaluators(reg)
	updateEvaluatorUC := usecase.NewUpdateEvaluator(reg)

	// gRPC server.
	grpcHandler := grpcpresentation.NewTrustServiceHandler(checkTrustUC, listEvaluatorsUC, logger)
	grpcServer, err := grpcpresentation.NewServer(grpcHandler, grpcpresentation.ServerConfig{
		Address:     cfg.GRPCAddress(),
		TLSCertFile: cfg.Server.TLSCertFile,
		TLSKeyFile:  cfg.Server.TLSKeyFile,
		Reflection:  cfg.Environment == "development",
	}, logger)
	if err != nil {
		return err
	}

	// HTTP server.
	var limiter *rate.Limiter
	if cfg.RateLimit.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), max(cfg.RateLimit.Burst, 1))
	}
	trustHandler := rest.NewTrustHandler(checkTrustUC, getAuditTrailUC, listEvaluatorsUC, updateEvaluatorUC, logger)
	healthHandler := rest.NewHealthHandler(serviceName, infra.readinessChecks(), logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      rest.NewRouter(trustHandler, healthHandler, metricsHandler, limiter, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start servers.
	errCh := make(chan error, 2)

	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "address", cfg.HTTPAddress())
		var err error
		if cfg.Server.TLSCertFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info("trust-engine started",
		"grpc_address", cfg.GRPCAddress(),
		"http_address", cfg.HTTPAddress(),
		"environment", cfg.Environment,
		"evaluators", len(reg.List()),
	)

	// Wait for shutdown signal.
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error("server error", "error", serveErr)
	}

	// Graceful shutdown: stop intake, then drain the audit queue.
	logger.Info("shutting down trust-engine")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := infra.dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("audit queue not fully drained", "error", err)
	}

	logger.Info("trust-engine stopped")
	return serveErr
}
