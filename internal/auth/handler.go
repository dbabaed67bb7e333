package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/watasiwa/tradegate/internal/initdata"
	"github.com/watasiwa/tradegate/internal/metrics"
)

// Handler exposes the login endpoint.
type Handler struct {
	svc     *Service
	metrics *metrics.Metrics
}

func NewHandler(svc *Service, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.Nop()
	}
	return &Handler{svc: svc, metrics: m}
}

type loginRequest struct {
	SignedPayload string `json:"signedPayload"`
	PhoneNumber   string `json:"phoneNumber"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Login validates the signed launch payload and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		h.metrics.Logins.WithLabelValues("malformed").Inc()
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Login(c.UserContext(), LoginInput{SignedPayload: req.SignedPayload, PhoneNumber: req.PhoneNumber})
	switch {
	case err == nil:
	case errors.Is(err, initdata.ErrMalformedPayload):
		h.metrics.Logins.WithLabelValues("malformed").Inc()
		return fiber.NewError(http.StatusBadRequest, "malformed signed payload")
	case errors.Is(err, initdata.ErrSignatureMismatch):
		h.metrics.Logins.WithLabelValues("rejected").Inc()
		return fiber.NewError(http.StatusUnauthorized, "invalid signed payload")
	default:
		h.metrics.Logins.WithLabelValues("error").Inc()
		return fiber.NewError(http.StatusInternalServerError, "login failed")
	}
	h.metrics.Logins.WithLabelValues("ok").Inc()
	return c.Status(http.StatusOK).JSON(loginResponse{Success: true, Message: "authenticated", Token: res.Token})
}
