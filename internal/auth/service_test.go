package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/watasiwa/tradegate/internal/identity"
	"github.com/watasiwa/tradegate/internal/initdata"
	"github.com/watasiwa/tradegate/internal/logging"
)

const testBotToken = "123456:TEST-bot-token"

func newTestService(t *testing.T) (*Service, *Issuer, identity.Repository) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	issuer := NewIssuer("jwt-secret")
	svc := NewService(testBotToken, time.Hour, issuer, identity.NewService(repo), logging.Discard())
	return svc, issuer, repo
}

func TestLoginIssuesTokenForPayloadUser(t *testing.T) {
	svc, issuer, repo := newTestService(t)
	raw := initdata.Sign([]initdata.Field{{Key: "user_id", Value: "42"}, {Key: "first_name", Value: "Ana"}}, testBotToken)

	res, err := svc.Login(context.Background(), LoginInput{SignedPayload: raw})
	require.NoError(t, err)

	claims, err := issuer.Verify(res.Token)
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)
	require.Nil(t, claims.PhoneNumber)

	stored, err := repo.FindByID(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "Ana", stored.FirstName)
}

func TestLoginCarriesPhoneIntoToken(t *testing.T) {
	svc, issuer, _ := newTestService(t)
	user := `{"id":7,"first_name":"Bo","language_code":"tr"}`
	raw := initdata.Sign([]initdata.Field{{Key: "user", Value: user}, {Key: "auth_date", Value: "1700000000"}}, testBotToken)

	res, err := svc.Login(context.Background(), LoginInput{SignedPayload: raw, PhoneNumber: "905550001122"})
	require.NoError(t, err)

	claims, err := issuer.Verify(res.Token)
	require.NoError(t, err)
	require.Equal(t, "7", claims.UserID)
	require.NotNil(t, claims.PhoneNumber)
	require.Equal(t, "+905550001122", *claims.PhoneNumber)
}

func TestLoginRejectsBadPayloads(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginInput{})
	require.ErrorIs(t, err, initdata.ErrMalformedPayload)

	_, err = svc.Login(ctx, LoginInput{SignedPayload: "user_id=42"})
	require.ErrorIs(t, err, initdata.ErrMalformedPayload)

	forged := initdata.Sign([]initdata.Field{{Key: "user_id", Value: "42"}}, "other:token")
	_, err = svc.Login(ctx, LoginInput{SignedPayload: forged})
	require.ErrorIs(t, err, initdata.ErrSignatureMismatch)

	_, err = repo.FindByID(ctx, "42")
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func newLoginApp(t *testing.T) *fiber.App {
	t.Helper()
	svc, _, _ := newTestService(t)
	app := fiber.New()
	app.Post("/login", NewHandler(svc, nil).Login)
	return app
}

func postLogin(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	return resp.StatusCode, decoded
}

func TestLoginHandlerStatusCodes(t *testing.T) {
	app := newLoginApp(t)

	valid := initdata.Sign([]initdata.Field{{Key: "user_id", Value: "42"}, {Key: "first_name", Value: "Ana"}}, testBotToken)
	body, _ := json.Marshal(map[string]string{"signedPayload": valid})
	status, decoded := postLogin(t, app, string(body))
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, decoded["token"])

	status, _ = postLogin(t, app, `{"signedPayload":"user_id=42&first_name=Ana"}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	bad := strings.Replace(valid, "user_id=42", "user_id=43", 1)
	body, _ = json.Marshal(map[string]string{"signedPayload": bad})
	status, _ = postLogin(t, app, string(body))
	require.Equal(t, fiber.StatusUnauthorized, status)
}
