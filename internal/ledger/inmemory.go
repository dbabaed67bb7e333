package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type balanceKey struct {
	userID string
	asset  string
}

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]decimal.Decimal
	assets   map[string]struct{}
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	l := &inMemoryLedger{
		balances: make(map[balanceKey]decimal.Decimal),
		assets:   make(map[string]struct{}, len(DefaultAssets)),
	}
	for _, a := range DefaultAssets {
		l.assets[a] = struct{}{}
	}
	return l
}

func (l *inMemoryLedger) Balance(_ context.Context, userID, asset string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{userID, asset}], nil
}

func (l *inMemoryLedger) Balances(_ context.Context, userID string) ([]AssetBalance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []AssetBalance
	for k, v := range l.balances {
		if k.userID == userID {
			out = append(out, AssetBalance{UserID: userID, Asset: k.asset, Balance: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (l *inMemoryLedger) ApplyFill(_ context.Context, fill Fill) (FillResult, error) {
	if err := fill.Validate(); err != nil {
		return FillResult{}, err
	}
	debitAsset, debit, creditAsset, credit := fill.Legs()

	l.mu.Lock()
	defer l.mu.Unlock()

	debitKey := balanceKey{fill.UserID, debitAsset}
	creditKey := balanceKey{fill.UserID, creditAsset}

	current := l.balances[debitKey]
	if current.LessThan(debit) {
		return FillResult{}, &InsufficientBalanceError{Asset: debitAsset, Needed: debit, Available: current}
	}

	debited := current.Sub(debit)
	credited := l.balances[creditKey].Add(credit)
	l.balances[debitKey] = debited
	l.balances[creditKey] = credited
	l.assets[debitAsset] = struct{}{}
	l.assets[creditAsset] = struct{}{}

	return FillResult{
		Debited:  AssetBalance{UserID: fill.UserID, Asset: debitAsset, Balance: debited},
		Credited: AssetBalance{UserID: fill.UserID, Asset: creditAsset, Balance: credited},
	}, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, userID, asset string, amount decimal.Decimal) (AssetBalance, error) {
	if userID == "" || asset == "" || !amount.IsPositive() {
		return AssetBalance{}, fmt.Errorf("%w: credit needs a user, an asset and a positive amount", ErrInvalidFill)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[asset]; !ok {
		return AssetBalance{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	key := balanceKey{userID, asset}
	l.balances[key] = l.balances[key].Add(amount)
	return AssetBalance{UserID: userID, Asset: asset, Balance: l.balances[key]}, nil
}
