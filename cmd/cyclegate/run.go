package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/cache"
	"github.com/cyclegate/cyclegate/internal/config"
	"github.com/cyclegate/cyclegate/internal/feed"
	"github.com/cyclegate/cyclegate/internal/gates"
	httpiface "github.com/cyclegate/cyclegate/internal/interfaces/http"
	"github.com/cyclegate/cyclegate/internal/persistence"
	"github.com/cyclegate/cyclegate/internal/persistence/postgres"
	"github.com/cyclegate/cyclegate/internal/scheduler"
	"github.com/cyclegate/cyclegate/internal/scoring"
	"github.com/cyclegate/cyclegate/internal/stream"
	"github.com/cyclegate/cyclegate/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the admission engine as a daemon",
		Long: `Runs the cycle driver against the configured candidate feed,
serving the observability API until interrupted.`,
		RunE: runDaemon,
	}
	cmd.Flags().String("source-url", "", "Candidate feed URL (overrides config)")
	return cmd
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if sourceURL, _ := cmd.Flags().GetString("source-url"); sourceURL != "" {
		cfg.Source.URL = sourceURL
	}
	if cfg.Source.URL == "" {
		return fmt.Errorf("no candidate feed configured: set source.url or --source-url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	cooldowns, redisClient, err := openCooldowns(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctrl, err := buildController(ctx, cfg, store, cooldowns)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	broadcaster := stream.NewBroadcaster()
	server := httpiface.NewServer(cfg.HTTP.Listen, ctrl, store.Blocks, broadcaster, reg)

	driver := scheduler.NewDriver(scheduler.Options{
		Interval:        cfg.CycleInterval(),
		SourceRPS:       cfg.Scheduler.SourceRPS,
		SourceBurst:     cfg.Scheduler.SourceBurst,
		BreakerFailures: cfg.Scheduler.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout(),
	}, feed.NewHTTPFeed(cfg.Source.URL, cfg.SourceTimeout()), ctrl, store, metrics, server)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info().
		Str("version", version).
		Str("profile", cfg.Profile).
		Int("capacity", cfg.EngineConfig().Capacity).
		Msg("cyclegate started")

	go func() {
		errCh <- driver.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("fatal error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("cyclegate stopped")
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if levelFlag, _ := cmd.Flags().GetString("log-level"); levelFlag == "" && cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
		}
		zerolog.SetGlobalLevel(level)
	}
	return cfg, nil
}

// openStore connects the audit store, or falls back to the no-op store
// when no DSN is configured. The caller owns the returned DB handle.
func openStore(ctx context.Context, cfg *config.Config) (*persistence.Store, interface{ Close() error }, error) {
	if cfg.Postgres.DSN == "" {
		log.Warn().Msg("no postgres DSN configured, block records will not be persisted")
		return persistence.NopStore(), nil, nil
	}
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.PostgresTimeout())
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	timeout := cfg.PostgresTimeout()
	return &persistence.Store{
		Blocks:    postgres.NewBlocksRepo(db, timeout),
		Positions: postgres.NewPositionsRepo(db, timeout),
	}, db, nil
}

// openCooldowns connects the Redis cooldown store, or falls back to the
// in-memory store when no address is configured.
func openCooldowns(ctx context.Context, cfg *config.Config) (admission.CooldownStore, *redis.Client, error) {
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("no redis configured, cooldowns will not survive restart")
		return admission.NewMemoryCooldowns(), nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return cache.NewRedisCooldowns(client), client, nil
}

// buildController assembles the scorer and controller, rebuilding the
// portfolio from the last persisted snapshot.
func buildController(ctx context.Context, cfg *config.Config, store *persistence.Store, cooldowns admission.CooldownStore) (*admission.Controller, error) {
	table, err := cfg.WeightTable()
	if err != nil {
		return nil, err
	}
	calc := scoring.NewCalculator(table, gates.NewStack(cfg.GateConfig()))

	engineCfg := cfg.EngineConfig()
	open, err := store.Positions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted positions: %w", err)
	}
	portfolio, err := admission.NewPortfolio(engineCfg.Capacity, open)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		log.Info().Int("positions", len(open)).Msg("portfolio restored from snapshot")
	}
	return admission.NewController(engineCfg, calc, portfolio, cooldowns)
}
