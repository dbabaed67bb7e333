package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// codeInvalidSymbol is Binance's error code for an unknown market.
const codeInvalidSymbol = -1121

// Binance trades against the Binance spot API.
type Binance struct {
	client *binance.Client
}

// NewBinance builds a spot client. testnet switches the package-wide
// endpoint to the spot testnet.
func NewBinance(apiKey, secretKey string, testnet bool) *Binance {
	binance.UseTestnet = testnet
	return &Binance{client: binance.NewClient(apiKey, secretKey)}
}

// NewBinanceWithClient wraps an already configured client.
func NewBinanceWithClient(client *binance.Client) *Binance {
	return &Binance{client: client}
}

// Price returns the last traded price.
func (b *Binance) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, translate(err)
	}
	for _, p := range prices {
		if p != nil && p.Symbol == symbol {
			return decimal.NewFromString(p.Price)
		}
	}
	return decimal.Zero, ErrUnknownSymbol
}

// MarketOrder places a MARKET order and reports the fill.
func (b *Binance) MarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := req.Validate(); err != nil {
		return OrderResult{}, err
	}
	svc := b.client.NewCreateOrderService().
		Symbol(strings.ToUpper(req.Symbol)).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderTypeMarket).
		NewOrderRespType(binance.NewOrderRespTypeFULL)
	if req.Quantity.IsPositive() {
		svc = svc.Quantity(req.Quantity.String())
	} else {
		svc = svc.QuoteOrderQty(req.QuoteQuantity.String())
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return OrderResult{}, translate(err)
	}

	executed, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return OrderResult{}, fmt.Errorf("decode executedQty: %w", err)
	}
	quote, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return OrderResult{}, fmt.Errorf("decode cummulativeQuoteQty: %w", err)
	}
	return OrderResult{
		OrderID:             strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID:       resp.ClientOrderID,
		Symbol:              resp.Symbol,
		Side:                req.Side,
		Status:              string(resp.Status),
		ExecutedQty:         executed,
		CummulativeQuoteQty: quote,
		TransactTime:        resp.TransactTime,
	}, nil
}

// translate turns the client's structured errors into *APIError.
func translate(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeInvalidSymbol {
			return fmt.Errorf("%w: %w", ErrUnknownSymbol, &APIError{Code: apiErr.Code, Message: apiErr.Message})
		}
		return &APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
