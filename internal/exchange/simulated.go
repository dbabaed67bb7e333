package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// quantityPlaces is the precision the simulator rounds fills to.
const quantityPlaces = 8

// DefaultPrices seeds the simulator.
var DefaultPrices = map[string]string{
	"BTCUSDT": "50000",
	"ETHUSDT": "2500",
	"BNBUSDT": "300",
	"SOLUSDT": "150",
	"ETHBTC":  "0.05",
	"BNBBTC":  "0.006",
	"BNBETH":  "0.12",
}

// Simulated fills every market order in full at a fixed price table.
type Simulated struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	now    func() time.Time
}

// NewSimulated builds a simulator from symbol to price strings. A nil map
// uses DefaultPrices.
func NewSimulated(prices map[string]string) *Simulated {
	if prices == nil {
		prices = DefaultPrices
	}
	s := &Simulated{prices: make(map[string]decimal.Decimal, len(prices)), now: time.Now}
	for symbol, p := range prices {
		s.prices[strings.ToUpper(symbol)] = decimal.RequireFromString(p)
	}
	return s
}

// SetPrice changes or adds a market.
func (s *Simulated) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
}

// Price returns the table price.
func (s *Simulated) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, ErrUnknownSymbol
	}
	return p, nil
}

// MarketOrder fills req at the table price.
func (s *Simulated) MarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := req.Validate(); err != nil {
		return OrderResult{}, &APIError{Code: -1102, Message: err.Error()}
	}
	price, err := s.Price(ctx, req.Symbol)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %w", ErrUnknownSymbol, &APIError{Code: codeInvalidSymbol, Message: "Invalid symbol."})
	}

	base, quote := req.Quantity, req.QuoteQuantity
	if base.IsPositive() {
		quote = base.Mul(price).Round(quantityPlaces)
	} else {
		base = quote.Div(price).Truncate(quantityPlaces)
	}
	if !base.IsPositive() || !quote.IsPositive() {
		return OrderResult{}, &APIError{Code: -1013, Message: "Filter failure: LOT_SIZE"}
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return OrderResult{
		OrderID:             uuid.NewString(),
		ClientOrderID:       clientID,
		Symbol:              strings.ToUpper(req.Symbol),
		Side:                req.Side,
		Status:              StatusFilled,
		ExecutedQty:         base,
		CummulativeQuoteQty: quote,
		TransactTime:        s.now().UnixMilli(),
	}, nil
}
