package wallet

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/watasiwa/tradegate/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Get returns the authenticated user's balances.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return fiber.NewError(http.StatusUnauthorized, "MissingCredential")
	}
	summary, err := h.service.Summary(c.UserContext(), userID)
	if err != nil {
		h.logger.Error("wallet read failed", slog.String("user_id", userID), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "wallet information could not be obtained")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}
