package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/watasiwa/tradegate/internal/trading"
)

// RegisterTradingRoutes wires order placement and price lookup. idempotency
// may be nil when no Redis is configured.
func RegisterTradingRoutes(r fiber.Router, h *trading.Handler, idempotency fiber.Handler) {
	if idempotency != nil {
		r.Post("/trade", idempotency, h.Trade)
	} else {
		r.Post("/trade", h.Trade)
	}
	r.Get("/price", h.Price)
}
