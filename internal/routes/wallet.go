package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/watasiwa/tradegate/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Get)
}
