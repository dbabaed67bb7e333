package exchange

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const pricePrefix = "price:v1:"

// CachedPrices keeps recent prices in Redis so the price endpoint and the
// trade pre-check do not hit the exchange on every request.
type CachedPrices struct {
	next   PriceSource
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedPrices wraps next. Redis failures fall through to next.
func NewCachedPrices(next PriceSource, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedPrices {
	return &CachedPrices{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Price returns the cached price or fetches and stores it.
func (c *CachedPrices) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	key := pricePrefix + symbol

	cached, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		p, perr := decimal.NewFromString(cached)
		if perr == nil {
			return p, nil
		}
		c.warn("discarding undecodable cached price", symbol, perr)
	case !errors.Is(err, redis.Nil):
		c.warn("price cache lookup failed", symbol, err)
	}

	price, err := c.next.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.cache.Set(ctx, key, price.String(), c.ttl).Err(); err != nil {
		c.warn("price cache store failed", symbol, err)
	}
	return price, nil
}

func (c *CachedPrices) warn(msg, symbol string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, slog.String("symbol", symbol), slog.Any("error", err))
}

type cachedExchange struct {
	Exchange
	prices *CachedPrices
}

func (e cachedExchange) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return e.prices.Price(ctx, symbol)
}

// WithPriceCache returns ex with Price served through Redis. A nil cache or a
// non-positive ttl returns ex unchanged.
func WithPriceCache(ex Exchange, cache *redis.Client, ttl time.Duration, logger *slog.Logger) Exchange {
	if cache == nil || ttl <= 0 {
		return ex
	}
	return cachedExchange{Exchange: ex, prices: NewCachedPrices(ex, cache, ttl, logger)}
}
