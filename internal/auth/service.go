package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/watasiwa/tradegate/internal/identity"
	"github.com/watasiwa/tradegate/internal/initdata"
)

// Registrar is the part of the identity service the login flow needs.
type Registrar interface {
	Register(ctx context.Context, profile identity.Profile, phone string) (identity.Identity, error)
}

// Service turns a signed launch payload into a bearer credential.
type Service struct {
	botToken string
	ttl      time.Duration
	issuer   *Issuer
	ids      Registrar
	logger   *slog.Logger
}

// NewService wires the login flow. botToken is the platform credential the
// launch payload is signed with.
func NewService(botToken string, ttl time.Duration, issuer *Issuer, ids Registrar, logger *slog.Logger) *Service {
	return &Service{botToken: botToken, ttl: ttl, issuer: issuer, ids: ids, logger: logger}
}

// LoginInput is the body of a login request.
type LoginInput struct {
	SignedPayload string
	PhoneNumber   string
}

// LoginResult is a freshly issued credential and the identity it names.
type LoginResult struct {
	Token    string
	Identity identity.Identity
}

// Login verifies the payload, upserts the identity and issues a token.
// Payload errors are initdata.ErrMalformedPayload or initdata.ErrSignatureMismatch.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if in.SignedPayload == "" {
		return LoginResult{}, initdata.ErrMalformedPayload
	}
	payload, err := initdata.Verify(in.SignedPayload, s.botToken)
	if err != nil {
		return LoginResult{}, err
	}
	user, err := payload.User()
	if err != nil {
		return LoginResult{}, err
	}

	id, err := s.ids.Register(ctx, identity.Profile{
		ID:           user.IDString(),
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		LanguageCode: user.LanguageCode,
		IsPremium:    user.IsPremium,
	}, in.PhoneNumber)
	if err != nil {
		s.logError("register identity failed", user.IDString(), err)
		return LoginResult{}, fmt.Errorf("register identity: %w", err)
	}

	token, err := s.issuer.Issue(Subject{UserID: id.ID, PhoneNumber: id.PhoneNumber}, s.ttl)
	if err != nil {
		s.logError("issue token failed", id.ID, err)
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("login succeeded", slog.String("user_id", id.ID), slog.Bool("has_phone", id.PhoneNumber != nil))
	}
	return LoginResult{Token: token, Identity: id}, nil
}

func (s *Service) logError(msg, userID string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, slog.String("user_id", userID), slog.Any("error", err))
	}
}
