package trading

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/watasiwa/tradegate/internal/exchange"
	"github.com/watasiwa/tradegate/internal/ledger"
	"github.com/watasiwa/tradegate/internal/middleware"
)

const genericFailure = "An error occurred during the operation."

// Handler exposes trading endpoints.
type Handler struct {
	service *Service
	prices  exchange.PriceSource
}

// NewHandler constructs a trading handler. prices backs GET /price.
func NewHandler(service *Service, prices exchange.PriceSource) *Handler {
	return &Handler{service: service, prices: prices}
}

type tradeRequest struct {
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Quantity         decimal.Decimal `json:"quantity"`
	UseQuoteQuantity bool            `json:"useQuoteQuantity"`
}

// Trade places a market order for the authenticated user.
func (h *Handler) Trade(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return fiber.NewError(http.StatusUnauthorized, "MissingCredential")
	}

	var req tradeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Symbol == "" || req.Side == "" {
		return fiber.NewError(http.StatusBadRequest, "required parameters are missing: symbol, side, quantity")
	}

	out, err := h.service.Execute(c.UserContext(), OrderInput{
		UserID:           userID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Quantity:         req.Quantity,
		UseQuoteQuantity: req.UseQuoteQuantity,
	})
	if err != nil {
		var apiErr *exchange.APIError
		switch {
		case errors.Is(err, ErrUnsupportedSymbol), errors.Is(err, ErrInvalidSide), errors.Is(err, ErrInvalidQuantity):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, insufficientMessage(err))
		case errors.Is(err, exchange.ErrUnknownSymbol):
			return fiber.NewError(http.StatusBadRequest, "unknown symbol")
		case errors.As(err, &apiErr):
			return fiber.NewError(http.StatusInternalServerError, apiErr.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, genericFailure)
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "The order was created successfully.",
		"order":   out.Order,
	})
}

// Price returns the last price of ?symbol=.
func (h *Handler) Price(c *fiber.Ctx) error {
	symbol := c.Query("symbol")
	if symbol == "" {
		return fiber.NewError(http.StatusBadRequest, "the symbol parameter is missing")
	}
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	symbol = base + quote

	price, err := h.prices.Price(c.UserContext(), symbol)
	if err != nil {
		if errors.Is(err, exchange.ErrUnknownSymbol) {
			return fiber.NewError(http.StatusNotFound, "no price found for symbol "+symbol)
		}
		return fiber.NewError(http.StatusInternalServerError, "price information could not be obtained")
	}
	return c.JSON(fiber.Map{"success": true, "symbol": symbol, "price": price})
}

func insufficientMessage(err error) string {
	var ibe *ledger.InsufficientBalanceError
	if errors.As(err, &ibe) {
		return "InsufficientBalance: " + ibe.Error()
	}
	return "InsufficientBalance"
}
