package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/watasiwa/tradegate/internal/auth"
)

const (
	userIDLocal = "user_id"
	phoneLocal  = "phone_number"
	// forwardedUserHeader was trusted by older deployments; it is never honoured.
	forwardedUserHeader = "X-User-Id"
)

type userIDKey struct{}

// TokenVerifier checks a bearer credential.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// RequestGate rejects requests without a valid bearer credential. Paths in
// allow pass through unauthenticated. On success the user id is available to
// handlers through UserID and UserIDFromContext.
func RequestGate(verifier TokenVerifier, allow ...string) fiber.Handler {
	open := make(map[string]struct{}, len(allow))
	for _, p := range allow {
		open[routeKey(p)] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		c.Request().Header.Del(forwardedUserHeader)
		if _, ok := open[routeKey(c.Path())]; ok {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "MissingCredential")
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "InvalidCredential")
		}

		c.Locals(userIDLocal, claims.UserID)
		if claims.PhoneNumber != nil {
			c.Locals(phoneLocal, *claims.PhoneNumber)
		}
		c.SetUserContext(WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// UserID returns the authenticated user id, or "" outside the gate.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}

// PhoneNumber returns the phone number carried by the credential, if any.
func PhoneNumber(c *fiber.Ctx) string {
	phone, _ := c.Locals(phoneLocal).(string)
	return phone
}

// WithUserID stores id on ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext reads the id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// routeKey folds a path the way fiber's default router matches it: trailing
// slash ignored, case-insensitive.
func routeKey(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return strings.ToLower(path)
}
