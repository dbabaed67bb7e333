// Package exchange places market orders and reads spot prices.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol is returned when the exchange has no market for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// StatusFilled is the only order status that moves balances.
const StatusFilled = "FILLED"

// Side is an order direction in exchange terms.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// APIError is a structured rejection reported by the exchange.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error (%d): %s", e.Code, e.Message)
}

// OrderRequest describes a market order. Exactly one of Quantity (base asset)
// and QuoteQuantity (quote asset) is set.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	QuoteQuantity decimal.Decimal
}

// Validate checks that the request names a symbol, a side and one positive amount.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return errors.New("symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("invalid side %q", r.Side)
	}
	if r.Quantity.IsPositive() == r.QuoteQuantity.IsPositive() {
		return errors.New("exactly one of quantity and quote quantity must be positive")
	}
	return nil
}

// OrderResult is the exchange's report of an order.
type OrderResult struct {
	OrderID             string          `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Symbol              string          `json:"symbol"`
	Side                Side            `json:"side"`
	Status              string          `json:"status"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	TransactTime        int64           `json:"transactTime"`
}

// Filled reports whether balances should move for this order.
func (r OrderResult) Filled() bool {
	return r.Status == StatusFilled
}

// PriceSource returns the last traded price of a symbol in its quote asset.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Exchange is the trading collaborator behind POST /trade.
type Exchange interface {
	PriceSource
	MarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
