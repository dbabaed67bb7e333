package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-bot-token"

func manualHash(t *testing.T, checkString string) string {
	t.Helper()
	derive := hmac.New(sha256.New, []byte("WebAppData"))
	derive.Write([]byte(testBotToken))
	secret := derive.Sum(nil)
	require.Len(t, secret, 32)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsHandBuiltPayload(t *testing.T) {
	hash := manualHash(t, "first_name=Ana\nuser_id=42")
	raw := "user_id=42&first_name=Ana&hash=" + hash

	payload, err := Verify(raw, testBotToken)
	require.NoError(t, err)

	user, err := payload.User()
	require.NoError(t, err)
	require.Equal(t, int64(42), user.ID)
	require.Equal(t, "42", user.IDString())
	require.Equal(t, "Ana", user.FirstName)
}

func TestVerifyRejectsDirectlySignedPayload(t *testing.T) {
	// Signing with the raw bot token instead of the derived key must not verify.
	mac := hmac.New(sha256.New, []byte(testBotToken))
	mac.Write([]byte("first_name=Ana\nuser_id=42"))
	raw := "user_id=42&first_name=Ana&hash=" + hex.EncodeToString(mac.Sum(nil))

	_, err := Verify(raw, testBotToken)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyRejectsAnySingleCharacterFlip(t *testing.T) {
	raw := Sign([]Field{{Key: "user_id", Value: "42"}, {Key: "auth_date", Value: "1700000000"}}, testBotToken)
	idx := strings.Index(raw, "&hash=") + len("&hash=")
	sig := raw[idx:]
	require.Len(t, sig, 64)

	for i := range sig {
		flipped := []byte(sig)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}
		_, err := Verify(raw[:idx]+string(flipped), testBotToken)
		require.ErrorIs(t, err, ErrSignatureMismatch, "flip at %d accepted", i)
	}
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	raw := Sign([]Field{{Key: "user_id", Value: "42"}}, testBotToken)
	_, err := Verify(raw, "other:token")
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	raw := Sign([]Field{{Key: "user_id", Value: "42"}}, testBotToken)
	_, err := Verify(strings.Replace(raw, "user_id=42", "user_id=43", 1), testBotToken)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyMalformed(t *testing.T) {
	cases := map[string]string{
		"no hash":        "user_id=42&first_name=Ana",
		"empty":          "",
		"hash only":      "&hash=abc",
		"hash first":     "hash=abc&user_id=42",
		"double hash":    "user_id=42&hash=abc&hash=def",
		"bad escape":     "user_id=%zz&hash=abc",
		"empty sig part": "user_id=42&hash=",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(raw, testBotToken)
			require.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestCanonicalFormIgnoresInputOrder(t *testing.T) {
	a := []Field{{"user_id", "42"}, {"auth_date", "1"}, {"first_name", "Ana"}, {"Zeta", "z"}}
	b := []Field{{"first_name", "Ana"}, {"Zeta", "z"}, {"auth_date", "1"}, {"user_id", "42"}}

	require.Equal(t, CheckString(canonicalize(a)), CheckString(canonicalize(b)))
	// Ordinal comparison: upper-case sorts before lower-case.
	require.Equal(t, "Zeta=z\nauth_date=1\nfirst_name=Ana\nuser_id=42", CheckString(canonicalize(a)))

	rawA := Sign(a, testBotToken)
	rawB := Sign(b, testBotToken)
	require.NotEqual(t, rawA, rawB)
	require.Equal(t, rawA[strings.Index(rawA, "&hash="):], rawB[strings.Index(rawB, "&hash="):])

	_, err := Verify(rawB, testBotToken)
	require.NoError(t, err)
}

func TestVerifyDecodesValues(t *testing.T) {
	user := `{"id":7,"first_name":"Ana María","username":"ana&co","language_code":"es","is_premium":true}`
	raw := Sign([]Field{{Key: "user", Value: user}, {Key: "query_id", Value: "AAE=="}}, testBotToken)
	require.NotContains(t, raw, " ")

	payload, err := Verify(raw, testBotToken)
	require.NoError(t, err)

	got, err := payload.User()
	require.NoError(t, err)
	require.Equal(t, User{ID: 7, FirstName: "Ana María", Username: "ana&co", LanguageCode: "es", IsPremium: true}, got)

	qid, ok := payload.Get("query_id")
	require.True(t, ok)
	require.Equal(t, "AAE==", qid)
}

func TestVerifyAcceptsHashInTheMiddle(t *testing.T) {
	hash := manualHash(t, "auth_date=1\nuser_id=42")
	raw := "user_id=42&hash=" + hash + "&auth_date=1"

	payload, err := Verify(raw, testBotToken)
	require.NoError(t, err)
	require.Len(t, payload.Fields(), 2)
}

func TestUserRequiresIdentity(t *testing.T) {
	raw := Sign([]Field{{Key: "first_name", Value: "Ana"}}, testBotToken)
	payload, err := Verify(raw, testBotToken)
	require.NoError(t, err)

	_, err = payload.User()
	require.ErrorIs(t, err, ErrMalformedPayload)

	raw = Sign([]Field{{Key: "user", Value: "{not json"}}, testBotToken)
	payload, err = Verify(raw, testBotToken)
	require.NoError(t, err)
	_, err = payload.User()
	require.ErrorIs(t, err, ErrMalformedPayload)
}
