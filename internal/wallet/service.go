package wallet

import (
	"context"
	"errors"

	"github.com/watasiwa/tradegate/internal/ledger"
)

// Service exposes wallet views backed by the ledger.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Summary returns every asset the user holds.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	balances, err := s.ledger.Balances(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(Summary, len(balances))
	for _, b := range balances {
		out[b.Asset] = newAssetView(b.Balance)
	}
	return out, nil
}
