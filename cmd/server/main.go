package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/aggregation"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/alerting"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/app"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/config"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/events"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/federation"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/fusion"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/gateway"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/integrity"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/logging"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/memstore"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/postgres"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/redisstore"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/retry"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/rewards"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/server"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/trust"
)

const (
	busBuffer       = 16
	leaderLeaseTTL  = 15 * time.Second
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second

	// The archive may start alongside its database; connection attempts
	// retry within this window before the process gives up.
	archiveConnectTimeout = 30 * time.Second
)

// pipelineStores collects the store implementations the selected backend
// provides. Snapshot, alert and signal logs stay in-process on every
// backend; Redis takes over the delta ledger and the throttle window, which
// are the two surfaces concurrent instances must agree on.
type pipelineStores struct {
	deltas       domain.DeltaStore
	throttle     domain.ThrottleStore
	snapshots    domain.SnapshotStore
	alerts       domain.AlertLog
	signals      domain.SignalLog
	contributors domain.ContributorIndex
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config, m *metrics.StoreMetrics) *redisstore.Client {
	client, err := redisstore.NewClient(cfg.RedisURL, redisstore.NewBreakerHook(m), redisstore.NewMetricsHook(m))
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupArchive(cfg *config.Config, m *metrics.ArchiveMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), archiveConnectTimeout)
	defer cancel()

	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database not ready, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	pool, err := retry.Do(ctx, policy, func(error) retry.Action { return retry.Retry }, func() (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(m))
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// instanceIdentity names this process for leader election, unique per
// instance (hostname-PID, with a random fallback).
func instanceIdentity() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func runGracefulShutdown(srv *server.Server, appSvc *app.Service, hub *federation.Hub, stopWorkers func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		appSvc.Stop()
		hub.Stop()
		stopWorkers()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Pipeline starting", "env", cfg.AppEnv, "port", cfg.Port, "backend", cfg.StoreBackend)

	registry := metrics.NewRegistry()
	intakeMetrics := metrics.NewIntakeMetrics(registry)
	cycleMetrics := metrics.NewCycleMetrics(registry)
	alertMetrics := metrics.NewAlertMetrics(registry)
	rewardMetrics := metrics.NewRewardMetrics(registry)
	fusionMetrics := metrics.NewFusionMetrics(registry)
	busMetrics := metrics.NewBusMetrics(registry)
	federationMetrics := metrics.NewFederationMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	hub := federation.NewHub(cfg.MaxFederationClients, federationMetrics)

	// Background workers (leader election, alert relay) run until shutdown.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	stopWorkers := func() {
		cancelWorkers()
		workers.Wait()
	}

	stores := pipelineStores{
		deltas:       memstore.NewDeltaStore(clock, integrity.DeltaDigest),
		throttle:     memstore.NewThrottleStore(),
		snapshots:    memstore.NewSnapshotStore(),
		alerts:       memstore.NewAlertLog(),
		signals:      memstore.NewSignalLog(clock),
		contributors: memstore.NewContributorIndex(),
	}
	var healthChecks []server.HealthCheck

	// Alerts fan out through the hub directly; with Redis they detour
	// through pub/sub so every instance's federation peers hear them.
	var broadcastSink domain.BroadcastSink = hub
	var leaderGate app.LeaderGate

	if cfg.StoreBackend == config.BackendRedis {
		storeMetrics := metrics.NewStoreMetrics(registry)
		redisClient := setupRedis(cfg, storeMetrics)
		defer func() { _ = redisClient.Close() }()

		stores.deltas = redisstore.NewDeltaStore(redisClient, clock, integrity.DeltaDigest)
		stores.throttle = redisstore.NewThrottleStore(redisClient)
		healthChecks = append(healthChecks, server.HealthCheck{Name: "redis", Check: redisClient.Ping})

		relay := redisstore.NewAlertRelay(redisClient, hub)
		broadcastSink = relay
		workers.Go(func() { relay.Run(workerCtx) })

		elector := redisstore.NewLeaderElection(redisClient, instanceIdentity(), leaderLeaseTTL, clock)
		leaderGate = elector
		workers.Go(func() { elector.Run(workerCtx) })
	}

	if cfg.DatabaseURL != "" {
		archiveMetrics := metrics.NewArchiveMetrics(registry)
		pool := setupArchive(cfg, archiveMetrics)
		defer pool.Close()

		archiver := postgres.NewArchiver(pool)
		stores.snapshots = postgres.NewArchivingSnapshotStore(stores.snapshots, archiver, clock, archiveMetrics)
		stores.alerts = postgres.NewArchivingAlertLog(stores.alerts, archiver, clock, archiveMetrics)
		stores.signals = postgres.NewArchivingSignalLog(stores.signals, archiver, clock, archiveMetrics)
		healthChecks = append(healthChecks, server.HealthCheck{Name: "postgres", Check: archiver.Ping})
	}

	verifier := integrity.NewValidator(cfg.ProofSecret, cfg.TimestampDriftBound, clock)
	deltaSvc := trust.NewService(stores.deltas, integrity.DeltaDigest, intakeMetrics, clock)
	intake := gateway.NewGateway(verifier, deltaSvc, stores.throttle, stores.contributors, intakeMetrics, clock, cfg.SubmissionWindow, cfg.MaxPerWindow)

	bus := events.NewBus(busBuffer, busMetrics)
	engine := aggregation.NewEngine(stores.deltas, stores.snapshots, bus, cycleMetrics, clock, cfg.VolatilityThreshold)
	monitor := alerting.NewMonitor(stores.alerts, broadcastSink, alertMetrics, clock)
	coordinator := fusion.NewCoordinator(stores.signals, fusionMetrics, clock, cfg.FusionThreshold)
	agent := rewards.NewAgent(stores.signals, stores.contributors, coordinator, rewardMetrics, clock, cfg.RewardCooldown, cfg.MaxMintsPerHour)

	appSvc := app.NewService(intake, deltaSvc, engine, monitor, agent, coordinator, bus, stores.snapshots, leaderGate, clock, cfg.AggregationInterval, cfg.FusionInterval, cycleMetrics)

	srv := server.NewServer(cfg, appSvc, hub, httpMetrics, registry, healthChecks)

	appSvc.Start()
	done := runGracefulShutdown(srv, appSvc, hub, stopWorkers)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
