package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/watasiwa/tradegate/internal/auth"
	"github.com/watasiwa/tradegate/internal/config"
	"github.com/watasiwa/tradegate/internal/exchange"
	"github.com/watasiwa/tradegate/internal/identity"
	"github.com/watasiwa/tradegate/internal/ledger"
	"github.com/watasiwa/tradegate/internal/logging"
	"github.com/watasiwa/tradegate/internal/metrics"
	"github.com/watasiwa/tradegate/internal/middleware"
	"github.com/watasiwa/tradegate/internal/trading"
	"github.com/watasiwa/tradegate/internal/wallet"
)

// Paths reachable without a bearer credential.
var publicPaths = []string{"/login", "/healthz", "/metrics"}

// Deps aggregates shared dependencies required to wire routes. Nil stores
// and a nil exchange are filled in by Setup; see Stores and NewExchange.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Identities identity.Repository
	Ledger     ledger.Ledger
	Exchange   exchange.Exchange

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// Stores picks Postgres-backed stores when a pool is configured and
// in-memory ones otherwise.
func Stores(db *pgxpool.Pool) (identity.Repository, ledger.Ledger) {
	if db != nil {
		return identity.NewPostgresRepository(db), ledger.NewPostgresLedger(db)
	}
	return identity.NewMemoryRepository(), ledger.NewInMemory()
}

// NewExchange builds the configured exchange, with prices cached in Redis
// when a cache is available.
func NewExchange(cfg config.Config, cache *redis.Client, logger *slog.Logger) exchange.Exchange {
	var ex exchange.Exchange
	switch cfg.ExchangeMode {
	case config.ExchangeBinance:
		ex = exchange.NewBinance(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceTestnet)
	default:
		ex = exchange.NewSimulated(nil)
	}
	return exchange.WithPriceCache(ex, cache, cfg.PriceCacheTTL, logger)
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Identities == nil || d.Ledger == nil {
		ids, l := Stores(d.DB)
		if d.Identities == nil {
			d.Identities = ids
		}
		if d.Ledger == nil {
			d.Ledger = l
		}
	}
	if d.Exchange == nil {
		d.Exchange = NewExchange(d.Cfg, d.Cache, d.Logger)
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(d.Registry)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	issuer := auth.NewIssuer(d.Cfg.JWTSecret)
	app.Use(middleware.RequestGate(issuer, publicPaths...))

	// Ops
	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	// Services and handlers
	identitySvc := identity.NewService(d.Identities)
	authSvc := auth.NewService(d.Cfg.BotToken, d.Cfg.TokenTTL, issuer, identitySvc, d.Logger)
	walletSvc := wallet.NewService(d.Ledger)
	tradingSvc := trading.NewService(d.Ledger, d.Exchange, d.Logger, d.Metrics)

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	RegisterAuthRoutes(app, auth.NewHandler(authSvc, d.Metrics), middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger))
	RegisterWalletRoutes(app, wallet.NewHandler(walletSvc, d.Logger))
	RegisterTradingRoutes(app, trading.NewHandler(tradingSvc, d.Exchange), idempotency)

	return nil
}
