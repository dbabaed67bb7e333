package trading

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/watasiwa/tradegate/internal/exchange"
	"github.com/watasiwa/tradegate/internal/ledger"
	"github.com/watasiwa/tradegate/internal/logging"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stubExchange reports a fixed fill and records what it was asked to do.
type stubExchange struct {
	price    decimal.Decimal
	priceErr error
	result   exchange.OrderResult
	orderErr error
	orders   []exchange.OrderRequest
}

func (s *stubExchange) Price(context.Context, string) (decimal.Decimal, error) {
	return s.price, s.priceErr
}

func (s *stubExchange) MarketOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	s.orders = append(s.orders, req)
	if s.orderErr != nil {
		return exchange.OrderResult{}, s.orderErr
	}
	res := s.result
	res.Symbol = req.Symbol
	res.Side = req.Side
	return res, nil
}

func filled(base, quote string) exchange.OrderResult {
	return exchange.OrderResult{OrderID: "1", Status: exchange.StatusFilled, ExecutedQty: dec(base), CummulativeQuoteQty: dec(quote)}
}

func newTestService(ex exchange.Exchange) (*Service, ledger.Ledger) {
	l := ledger.NewInMemory()
	return NewService(l, ex, logging.Discard(), nil), l
}

func balance(t *testing.T, l ledger.Ledger, asset string) decimal.Decimal {
	t.Helper()
	b, err := l.Balance(context.Background(), "42", asset)
	require.NoError(t, err)
	return b
}

func TestSplitSymbol(t *testing.T) {
	cases := map[string][2]string{
		"BTCUSDT": {"BTC", "USDT"},
		"ethbtc":  {"ETH", "BTC"},
		"BNBETH":  {"BNB", "ETH"},
	}
	for symbol, want := range cases {
		base, quote, err := SplitSymbol(symbol)
		require.NoError(t, err, symbol)
		require.Equal(t, want[0], base)
		require.Equal(t, want[1], quote)
	}
	for _, bad := range []string{"BTCEUR", "USDT", "", "BTC-USD"} {
		_, _, err := SplitSymbol(bad)
		require.ErrorIs(t, err, ErrUnsupportedSymbol, bad)
	}
}

func TestExecuteRejectsWhenPreCheckFails(t *testing.T) {
	ex := &stubExchange{result: filled("0.002", "100")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "50")

	_, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy", Quantity: dec("100"), UseQuoteQuantity: true})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	var ibe *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	require.Equal(t, "USDT", ibe.Asset)
	require.True(t, ibe.Available.Equal(dec("50")))

	require.Empty(t, ex.orders)
	require.True(t, balance(t, l, "USDT").Equal(dec("50")))
	require.True(t, balance(t, l, "BTC").IsZero())
}

func TestExecuteBooksFilledBuy(t *testing.T) {
	ex := &stubExchange{result: filled("0.002", "100")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "200")

	out, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "btcusdt", Side: "BUY", Quantity: dec("100"), UseQuoteQuantity: true})
	require.NoError(t, err)
	require.NotNil(t, out.Booked)

	require.Len(t, ex.orders, 1)
	require.Equal(t, "BTCUSDT", ex.orders[0].Symbol)
	require.Equal(t, exchange.SideBuy, ex.orders[0].Side)
	require.True(t, ex.orders[0].QuoteQuantity.Equal(dec("100")))
	require.True(t, ex.orders[0].Quantity.IsZero())
	require.NotEmpty(t, ex.orders[0].ClientOrderID)

	require.True(t, balance(t, l, "USDT").Equal(dec("100")))
	require.True(t, balance(t, l, "BTC").Equal(dec("0.002")))
}

func TestExecuteConvertsBaseQuantityBuyThroughPrice(t *testing.T) {
	ex := &stubExchange{price: dec("50000"), result: filled("0.003", "150")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "149")

	// 0.003 BTC at 50000 needs 150 USDT.
	_, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.003")})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.Empty(t, ex.orders)

	ledger.SeedBalance(l, "42", "USDT", "150")
	_, err = svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.003")})
	require.NoError(t, err)
	require.True(t, ex.orders[0].Quantity.Equal(dec("0.003")))
	require.True(t, balance(t, l, "USDT").IsZero())
}

func TestExecuteConvertsQuoteQuantitySellThroughPrice(t *testing.T) {
	ex := &stubExchange{price: dec("2500"), result: filled("0.04", "100")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "ETH", "0.05")

	_, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "ETHUSDT", Side: "sell", Quantity: dec("100"), UseQuoteQuantity: true})
	require.NoError(t, err)
	require.Equal(t, exchange.SideSell, ex.orders[0].Side)
	require.True(t, balance(t, l, "ETH").Equal(dec("0.01")))
	require.True(t, balance(t, l, "USDT").Equal(dec("100")))
}

func TestExecuteLeavesLedgerAloneWhenNotFilled(t *testing.T) {
	ex := &stubExchange{result: exchange.OrderResult{OrderID: "9", Status: "EXPIRED"}}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "BTC", "1")

	out, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "sell", Quantity: dec("0.5")})
	require.NoError(t, err)
	require.Nil(t, out.Booked)
	require.Equal(t, "EXPIRED", out.Order.Status)
	require.True(t, balance(t, l, "BTC").Equal(dec("1")))
}

func TestExecuteAuthoritativeCheckRejectsOverfill(t *testing.T) {
	// The exchange spends more than the pre-check covered.
	ex := &stubExchange{result: filled("0.002", "120")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "100")

	_, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy", Quantity: dec("100"), UseQuoteQuantity: true})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.True(t, balance(t, l, "USDT").Equal(dec("100")))
	require.True(t, balance(t, l, "BTC").IsZero())
}

func TestExecuteValidation(t *testing.T) {
	svc, l := newTestService(&stubExchange{})
	ledger.SeedBalance(l, "42", "USDT", "100")
	ctx := context.Background()

	_, err := svc.Execute(ctx, OrderInput{UserID: "42", Symbol: "BTCEUR", Side: "buy", Quantity: dec("1"), UseQuoteQuantity: true})
	require.ErrorIs(t, err, ErrUnsupportedSymbol)
	_, err = svc.Execute(ctx, OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "hold", Quantity: dec("1")})
	require.ErrorIs(t, err, ErrInvalidSide)
	_, err = svc.Execute(ctx, OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy", Quantity: dec("-1")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Execute(ctx, OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestExecuteSurfacesExchangeErrors(t *testing.T) {
	apiErr := &exchange.APIError{Code: -2010, Message: "Account has insufficient balance for requested action."}
	ex := &stubExchange{orderErr: apiErr}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "100")

	_, err := svc.Execute(context.Background(), OrderInput{UserID: "42", Symbol: "BTCUSDT", Side: "buy", Quantity: dec("10"), UseQuoteQuantity: true})
	require.ErrorIs(t, err, apiErr)
	require.True(t, balance(t, l, "USDT").Equal(dec("100")))
}

func newTradeApp(svc *Service, prices exchange.PriceSource) *fiber.App {
	h := NewHandler(svc, prices)
	app := fiber.New()
	withUser := func(c *fiber.Ctx) error {
		if id := c.Get("X-Test-User"); id != "" {
			c.Locals("user_id", id)
		}
		return c.Next()
	}
	app.Post("/trade", withUser, h.Trade)
	app.Get("/price", h.Price)
	return app
}

func call(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", "42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	_ = json.Unmarshal(raw, &decoded)
	decoded["_raw"] = string(raw)
	return resp.StatusCode, decoded
}

func TestTradeHandlerStatusCodes(t *testing.T) {
	ex := &stubExchange{result: filled("0.002", "100")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "150")
	app := newTradeApp(svc, ex)

	status, body := call(t, app, fiber.MethodPost, "/trade", `{"symbol":"BTCUSDT","side":"buy","quantity":"100","useQuoteQuantity":true}`)
	require.Equal(t, fiber.StatusOK, status, body["_raw"])
	require.Equal(t, true, body["success"])
	order := body["order"].(map[string]any)
	require.Equal(t, "FILLED", order["status"])
	require.Equal(t, "0.002", order["executedQty"])

	status, body = call(t, app, fiber.MethodPost, "/trade", `{"symbol":"BTCUSDT","side":"buy","quantity":100,"useQuoteQuantity":true}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Contains(t, body["_raw"], "InsufficientBalance")

	status, _ = call(t, app, fiber.MethodPost, "/trade", `{"symbol":"BTCEUR","side":"buy","quantity":1}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	status, _ = call(t, app, fiber.MethodPost, "/trade", `{"symbol":"BTCUSDT","side":"buy","quantity":0}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	status, _ = call(t, app, fiber.MethodPost, "/trade", `{"side":"buy","quantity":1}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	ex.orderErr = &exchange.APIError{Code: -1013, Message: "Filter failure: LOT_SIZE"}
	status, body = call(t, app, fiber.MethodPost, "/trade", `{"symbol":"BTCUSDT","side":"buy","quantity":"10","useQuoteQuantity":true}`)
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Contains(t, body["_raw"], "API Error (-1013): Filter failure: LOT_SIZE")

	ex.orderErr = errors.New("connection refused")
	status, body = call(t, app, fiber.MethodPost, "/trade", `{"symbol":"BTCUSDT","side":"buy","quantity":"10","useQuoteQuantity":true}`)
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Contains(t, body["_raw"], genericFailure)
}

func TestTradeHandlerIgnoresBodyIdentity(t *testing.T) {
	ex := &stubExchange{result: filled("0.002", "100")}
	svc, l := newTestService(ex)
	ledger.SeedBalance(l, "42", "USDT", "200")
	ledger.SeedBalance(l, "7", "USDT", "200")
	app := newTradeApp(svc, ex)

	status, _ := call(t, app, fiber.MethodPost, "/trade", `{"userId":"7","symbol":"BTCUSDT","side":"buy","quantity":"100","useQuoteQuantity":true}`)
	require.Equal(t, fiber.StatusOK, status)

	other, err := l.Balance(context.Background(), "7", "USDT")
	require.NoError(t, err)
	require.True(t, other.Equal(dec("200")))
	require.True(t, balance(t, l, "USDT").Equal(dec("100")))
}

func TestPriceHandler(t *testing.T) {
	sim := exchange.NewSimulated(nil)
	svc, _ := newTestService(sim)
	app := newTradeApp(svc, sim)

	status, body := call(t, app, fiber.MethodGet, "/price?symbol=btcusdt", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "BTCUSDT", body["symbol"])
	require.Equal(t, "50000", body["price"])

	status, _ = call(t, app, fiber.MethodGet, "/price", "")
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, app, fiber.MethodGet, "/price?symbol=DOGEUSDT", "")
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestTradeHandlerUnknownMarketOnSimulatedExchange(t *testing.T) {
	sim := exchange.NewSimulated(nil)
	svc, l := newTestService(sim)
	ledger.SeedBalance(l, "42", "USDT", "1000")
	app := newTradeApp(svc, sim)

	// A quote-quantity buy skips the price lookup, so the exchange itself rejects the market.
	status, body := call(t, app, fiber.MethodPost, "/trade", `{"symbol":"XYZUSDT","side":"buy","quantity":"10","useQuoteQuantity":true}`)
	require.Equal(t, fiber.StatusBadRequest, status, body["_raw"])
	require.Contains(t, body["_raw"], "unknown symbol")

	status, _ = call(t, app, fiber.MethodPost, "/trade", `{"symbol":"XYZUSDT","side":"buy","quantity":"10"}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.True(t, balance(t, l, "USDT").Equal(dec("1000")))
}
