package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/audit"
	"github.com/xela07ax/zkspend-gateway/internal/connectors"
	"github.com/xela07ax/zkspend-gateway/internal/engine"
	"github.com/xela07ax/zkspend-gateway/internal/infra/auth"
	"github.com/xela07ax/zkspend-gateway/internal/prover"
	"github.com/xela07ax/zkspend-gateway/internal/repository/postgres"
	"github.com/xela07ax/zkspend-gateway/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long:  "Runs the proof and payment API. Prometheus metrics are served on a separate listener.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	logger := a.logger
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Инфраструктура: Redis (L2 + инвалидация), Postgres (аудит)
	rdb := a.redis()
	if rdb != nil {
		pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing with in-memory cache only", zap.Error(err))
			rdb.Close()
			rdb = nil
		}
		pingCancel()
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var storage audit.StorageInterface = audit.NewLogStorage(logger)
	if a.cfg.Database.URL != "" {
		repo, err := postgres.NewAuditRepo(a.cfg.Database.URL, int(a.cfg.Database.MaxConns))
		if err != nil {
			return err
		}
		defer repo.Close()

		dbCtx, dbCancel := context.WithTimeout(appCtx, 5*time.Second)
		err = repo.Ping(dbCtx)
		if err == nil {
			err = repo.EnsureSchema(dbCtx)
		}
		dbCancel()
		if err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		storage = repo
	}

	trail := audit.NewTrail(storage, audit.Options{
		BufferSize:    a.cfg.Audit.BufferSize,
		BatchSize:     a.cfg.Audit.BatchSize,
		FlushInterval: a.cfg.Audit.FlushInterval,
		OnBufferFill:  metrics.ObserveAuditBuffer,
	}, logger)
	trail.Start()
	defer trail.Stop()

	// 3. Политики из ENS
	resolver, closeRPC, err := a.resolver(appCtx, rdb, metrics.ObserveBreaker)
	if err != nil {
		return err
	}
	defer closeRPC()

	if rdb != nil {
		go resolver.StartInvalidationListener(appCtx, rdb)
	}
	go engine.WarmupPolicies(appCtx, rdb, resolver, a.cfg.Policy.Warmup, logger)

	// 4. Доказательства
	artifacts := a.artifacts()
	if !artifacts.ProvingAvailable() {
		if a.cfg.Prover.Strict {
			return fmt.Errorf("strict mode: %w (run `zkgate setup`)", prover.ErrArtifactsMissing)
		}
		logger.Warn("circuit artifacts not found, proofs will be mocked", zap.Any("paths", artifacts.Paths()))
	}
	generator := prover.NewGenerator(artifacts, a.proverOptions(), logger)
	verifier := prover.NewVerifier(artifacts, a.proverOptions(), logger)

	// 5. Исполнение платежей (симулятор + Reliability)
	ex := a.cfg.Executor
	simulator := connectors.NewPaymentSimulator(connectors.SimulatorOptions{
		MinLatency:   ex.MinLatency,
		MaxLatency:   ex.MaxLatency,
		ThrottleRate: ex.ThrottleRate,
		RetryAfter:   ex.RetryAfter,
	}, logger)
	executor := engine.NewReliableExecutor(simulator, engine.ExecutorOptions{
		CallTimeout:   ex.CallTimeout,
		Attempts:      ex.RetryAttempts,
		RateLimit:     ex.RateLimit,
		RateBurst:     ex.RateBurst,
		CBMaxRequests: ex.CBMaxRequests,
		CBInterval:    ex.CBInterval,
		CBTimeout:     ex.CBTimeout,
		OnStateChange: metrics.ObserveBreaker,
	}, logger)

	// 6. Core
	gw := engine.NewGateway(resolver, generator, verifier, executor, trail, metrics, logger)

	var validator auth.TokenValidator
	if len(a.cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(a.cfg.Auth.PublicKey)
		if err != nil {
			return err
		}
		validator = auth.NewAgentValidator(pub, auth.ValidatorOptions{
			Issuer:   a.cfg.Auth.Issuer,
			Audience: a.cfg.Auth.Audience,
			Leeway:   a.cfg.Auth.Leeway,
		})
	} else {
		logger.Warn("auth public key is not configured, API is open")
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      server.NewGatewayServer(gw, invalidator{resolver: resolver, rdb: rdb}, validator, logger),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus
	metricsSrv := &http.Server{
		Addr:    a.cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("metrics listener started", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics listener: %w", err)
		}
	}()
	go func() {
		logger.Info("gateway started", zap.String("addr", srv.Addr), zap.Bool("strict", a.cfg.Prover.Strict))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	// 7. Graceful Shutdown
	select {
	case <-appCtx.Done():
	case err = <-errCh:
		logger.Error("server failed", zap.Error(err))
	}
	logger.Info("gateway stopping...")

	// Даем 10 секунд на завершение запросов (Prove может идти секунды)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("server shutdown failed", zap.Error(shutdownErr))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	cancel()

	logger.Info("gateway exited properly")
	return err
}
