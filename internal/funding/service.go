// Package funding credits assets to users from outside the trading flow,
// for example when an operator tops up a test account.
package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/watasiwa/tradegate/internal/identity"
	"github.com/watasiwa/tradegate/internal/ledger"
)

var (
	// ErrInvalidAsset is returned for asset symbols that are not 2-10 upper-case alphanumerics.
	ErrInvalidAsset = errors.New("invalid asset symbol")
	// ErrInvalidAmount is returned for non-numeric or non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be a positive decimal")
)

// Service records deposits on the ledger.
type Service struct {
	ledger     ledger.Ledger
	identities identity.Repository
}

// NewService prepares a funding service.
func NewService(l ledger.Ledger, identities identity.Repository) (*Service, error) {
	if l == nil || identities == nil {
		return nil, fmt.Errorf("ledger and identity repository are required")
	}
	return &Service{ledger: l, identities: identities}, nil
}

// DepositInput captures the data required to credit a user.
type DepositInput struct {
	UserID    string
	Asset     string
	Amount    string
	Reference string
}

// DepositResult represents the outcome of a deposit.
type DepositResult struct {
	Reference   string
	Balance     ledger.AssetBalance
	CompletedAt time.Time
}

// Deposit credits Amount of Asset to an existing identity. The identity must
// have logged in at least once.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (DepositResult, error) {
	asset := strings.ToUpper(strings.TrimSpace(input.Asset))
	if err := validateAsset(asset); err != nil {
		return DepositResult{}, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil || !amount.IsPositive() {
		return DepositResult{}, ErrInvalidAmount
	}
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}

	if _, err := s.identities.FindByID(ctx, input.UserID); err != nil {
		return DepositResult{}, fmt.Errorf("deposit to %s: %w", input.UserID, err)
	}

	balance, err := s.ledger.Credit(ctx, input.UserID, asset, amount)
	if err != nil {
		return DepositResult{}, err
	}
	return DepositResult{Reference: input.Reference, Balance: balance, CompletedAt: time.Now().UTC()}, nil
}

func validateAsset(asset string) error {
	if len(asset) < 2 || len(asset) > 10 {
		return ErrInvalidAsset
	}
	for _, r := range asset {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return ErrInvalidAsset
		}
	}
	return nil
}
