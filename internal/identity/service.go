package identity

import (
	"context"
	"errors"
	"strings"
)

// Service manages identity lifecycle on the web login path.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates the identity on first login or refreshes its profile on
// later ones. A blank phone number leaves the stored one untouched.
func (s *Service) Register(ctx context.Context, profile Profile, phone string) (Identity, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return Identity{}, errors.New("identity id is required")
	}

	var phonePtr *string
	if p := NormalizePhone(phone); p != "" {
		phonePtr = &p
	}
	return s.repo.Upsert(ctx, profile, phonePtr)
}

// Get returns the identity for id.
func (s *Service) Get(ctx context.Context, id string) (Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// NormalizePhone trims whitespace and makes sure a non-empty number carries a
// leading "+", which Telegram omits in contact cards.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}
