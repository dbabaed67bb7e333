// Package trading turns a trade request into an exchange order and books the
// fill on the ledger.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/watasiwa/tradegate/internal/exchange"
	"github.com/watasiwa/tradegate/internal/ledger"
	"github.com/watasiwa/tradegate/internal/metrics"
)

var (
	// ErrUnsupportedSymbol is returned for symbols without a known quote suffix.
	ErrUnsupportedSymbol = errors.New("unsupported symbol format, must end with USDT, BTC or ETH")
	// ErrInvalidSide is returned for anything but buy or sell.
	ErrInvalidSide = errors.New(`invalid side, should be "buy" or "sell"`)
	// ErrInvalidQuantity is returned for a missing or non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// quoteSuffixes are checked in order; the first match splits the symbol.
var quoteSuffixes = []string{"USDT", "BTC", "ETH"}

// SplitSymbol splits an exchange symbol such as BTCUSDT into base and quote.
func SplitSymbol(symbol string) (base, quote string, err error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q, nil
		}
	}
	return "", "", ErrUnsupportedSymbol
}

// OrderInput is a market order on behalf of an authenticated user.
type OrderInput struct {
	UserID string
	Symbol string
	Side   string
	// Quantity is in the base asset, or in the quote asset when
	// UseQuoteQuantity is set.
	Quantity         decimal.Decimal
	UseQuoteQuantity bool
}

// OrderOutcome is what the exchange reported and, for filled orders, the
// balances after booking.
type OrderOutcome struct {
	Order  exchange.OrderResult
	Booked *ledger.FillResult
}

// Service executes trades.
type Service struct {
	ledger   ledger.Ledger
	exchange exchange.Exchange
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService wires the trade flow. A nil metrics set is replaced with a no-op one.
func NewService(l ledger.Ledger, ex exchange.Exchange, logger *slog.Logger, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.Nop()
	}
	return &Service{ledger: l, exchange: ex, logger: logger, metrics: m}
}

// Execute validates the request, checks the spendable balance, places the
// order and applies the fill. The balance check here is advisory; ApplyFill
// repeats it atomically.
func (s *Service) Execute(ctx context.Context, in OrderInput) (OrderOutcome, error) {
	side, err := ledger.ParseSide(in.Side)
	if err != nil {
		return OrderOutcome{}, ErrInvalidSide
	}
	outcome, err := s.execute(ctx, side, in)
	s.metrics.Trades.WithLabelValues(string(side), resultLabel(err)).Inc()
	return outcome, err
}

func (s *Service) execute(ctx context.Context, side ledger.Side, in OrderInput) (OrderOutcome, error) {
	base, quote, err := SplitSymbol(in.Symbol)
	if err != nil {
		return OrderOutcome{}, err
	}
	if !in.Quantity.IsPositive() {
		return OrderOutcome{}, ErrInvalidQuantity
	}
	symbol := base + quote

	spend := quote
	if side == ledger.SideSell {
		spend = base
	}
	needed := in.Quantity
	if (side == ledger.SideBuy && !in.UseQuoteQuantity) || (side == ledger.SideSell && in.UseQuoteQuantity) {
		price, err := s.exchange.Price(ctx, symbol)
		if err != nil {
			return OrderOutcome{}, fmt.Errorf("price %s: %w", symbol, err)
		}
		if !price.IsPositive() {
			return OrderOutcome{}, fmt.Errorf("price %s: %w", symbol, exchange.ErrUnknownSymbol)
		}
		if side == ledger.SideBuy {
			needed = in.Quantity.Mul(price)
		} else {
			needed = in.Quantity.Div(price)
		}
	}

	ok, err := ledger.CheckAvailable(ctx, s.ledger, in.UserID, spend, needed)
	if err != nil {
		return OrderOutcome{}, fmt.Errorf("check %s balance: %w", spend, err)
	}
	if !ok {
		available, err := s.ledger.Balance(ctx, in.UserID, spend)
		if err != nil {
			return OrderOutcome{}, fmt.Errorf("read %s balance: %w", spend, err)
		}
		return OrderOutcome{}, &ledger.InsufficientBalanceError{Asset: spend, Needed: needed, Available: available}
	}

	req := exchange.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          exchange.SideBuy,
	}
	if side == ledger.SideSell {
		req.Side = exchange.SideSell
	}
	if in.UseQuoteQuantity {
		req.QuoteQuantity = in.Quantity
	} else {
		req.Quantity = in.Quantity
	}

	order, err := s.exchange.MarketOrder(ctx, req)
	if err != nil {
		s.logger.Error("market order failed",
			slog.String("user_id", in.UserID),
			slog.String("symbol", symbol),
			slog.String("side", string(side)),
			slog.Any("error", err),
		)
		return OrderOutcome{}, fmt.Errorf("place order: %w", err)
	}
	outcome := OrderOutcome{Order: order}
	if !order.Filled() {
		s.logger.Info("order not filled, ledger untouched",
			slog.String("order_id", order.OrderID),
			slog.String("status", order.Status),
		)
		return outcome, nil
	}

	booked, err := s.ledger.ApplyFill(ctx, ledger.Fill{
		UserID:        in.UserID,
		BaseAsset:     base,
		QuoteAsset:    quote,
		Side:          side,
		ExecutedBase:  order.ExecutedQty,
		ExecutedQuote: order.CummulativeQuoteQty,
	})
	if err != nil {
		s.metrics.LedgerFills.WithLabelValues(resultLabel(err)).Inc()
		s.logger.Error("filled order could not be booked",
			slog.String("user_id", in.UserID),
			slog.String("order_id", order.OrderID),
			slog.String("executed_qty", order.ExecutedQty.String()),
			slog.String("executed_quote_qty", order.CummulativeQuoteQty.String()),
			slog.Any("error", err),
		)
		return outcome, err
	}
	s.metrics.LedgerFills.WithLabelValues("ok").Inc()
	outcome.Booked = &booked

	s.logger.Info("order filled",
		slog.String("user_id", in.UserID),
		slog.String("order_id", order.OrderID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
	)
	return outcome, nil
}

func resultLabel(err error) string {
	var apiErr *exchange.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.As(err, &apiErr), errors.Is(err, exchange.ErrUnknownSymbol):
		return "exchange_error"
	case errors.Is(err, ErrUnsupportedSymbol), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidSide):
		return "invalid"
	default:
		return "error"
	}
}
