package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential is returned when a request carries no bearer token.
	ErrMissingCredential = errors.New("missing bearer token")
	// ErrInvalidCredential covers bad signatures, expired tokens and malformed claims.
	ErrInvalidCredential = errors.New("invalid or expired token")
)

// Subject is the identity a credential is issued for.
type Subject struct {
	UserID      string
	PhoneNumber *string
}

// Claims is the verified content of a bearer token.
type Claims struct {
	UserID      string  `json:"userId"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 bearer tokens. It holds no state besides the
// signing key: expiry is the only way a token stops being valid.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer builds an issuer for the given signing secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token for subject that expires after ttl.
func (i *Issuer) Issue(subject Subject, ttl time.Duration) (string, error) {
	if !validUserID(subject.UserID) {
		return "", fmt.Errorf("issue token: invalid user id %q", subject.UserID)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("issue token: ttl must be positive")
	}
	now := i.now()
	claims := Claims{
		UserID:      subject.UserID,
		PhoneNumber: subject.PhoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks signature, expiry and the identity claim of token.
func (i *Issuer) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingCredential
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidCredential
	}
	if !validUserID(claims.UserID) {
		return Claims{}, ErrInvalidCredential
	}
	return claims, nil
}

// validUserID accepts the string-encoded numeric platform identifiers.
func validUserID(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
