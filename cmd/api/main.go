package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/watasiwa/tradegate/internal/bot"
	"github.com/watasiwa/tradegate/internal/config"
	"github.com/watasiwa/tradegate/internal/infra"
	"github.com/watasiwa/tradegate/internal/ledger"
	"github.com/watasiwa/tradegate/internal/logging"
	"github.com/watasiwa/tradegate/internal/metrics"
	"github.com/watasiwa/tradegate/internal/registration"
	"github.com/watasiwa/tradegate/internal/routes"
	"github.com/watasiwa/tradegate/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("exit", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := infra.EnsureSchema(ctx, pool, ledger.DefaultAssets...); err != nil {
			return err
		}
		db = pool
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		cache = client
	} else {
		logger.Warn("REDIS_URL not set, idempotency, rate limiting and price caching are off")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	identities, ledgerBackend := routes.Stores(db)

	srv, err := server.New(routes.Deps{
		Cfg:        cfg,
		DB:         db,
		Cache:      cache,
		Logger:     logger,
		Identities: identities,
		Ledger:     ledgerBackend,
		Exchange:   routes.NewExchange(cfg, cache, logger),
		Registry:   registry,
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "address", cfg.Address())
		return srv.Listen()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.BotEnabled {
		api, err := bot.Connect(cfg.BotToken)
		if err != nil {
			return fmt.Errorf("connect bot: %w", err)
		}
		logger.Info("bot authorized", "username", api.Self.UserName)

		syncer := registration.NewService(identities, registration.Policy{
			Attempts: cfg.ContactSyncAttempts,
			Interval: cfg.ContactSyncInterval,
		}, bot.NewTelegramNotifier(api), logger, m)
		b := bot.New(api, syncer, logger)
		g.Go(func() error { return b.Run(gctx) })
	} else {
		logger.Info("bot disabled, phone numbers can only arrive through login")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
