package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance occurs when a debit would drive a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidFill indicates a fill with a bad side, asset or amount.
	ErrInvalidFill = errors.New("invalid fill")

	// ErrUnknownAsset is returned when crediting an asset missing from the catalog.
	ErrUnknownAsset = errors.New("unknown asset")
)

// DefaultAssets is the catalog every ledger starts with: the legs of the
// markets the simulated exchange quotes. Fills add the assets they touch.
var DefaultAssets = []string{"BNB", "BTC", "ETH", "SOL", "USDT"}

// Side is the direction of a trade from the user's point of view.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side %q: must be buy or sell", s)
	}
}

// InsufficientBalanceError reports the amounts involved in a rejected debit.
type InsufficientBalanceError struct {
	Asset     string
	Needed    decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %s, have %s", e.Asset, e.Needed.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// AssetBalance is the quantity of one asset held by one user.
type AssetBalance struct {
	UserID  string
	Asset   string
	Balance decimal.Decimal
}

// Fill is an executed trade as reported by the exchange.
type Fill struct {
	UserID        string
	BaseAsset     string
	QuoteAsset    string
	Side          Side
	ExecutedBase  decimal.Decimal
	ExecutedQuote decimal.Decimal
}

// Legs returns the debited and credited asset with their amounts.
func (f Fill) Legs() (debitAsset string, debit decimal.Decimal, creditAsset string, credit decimal.Decimal) {
	if f.Side == SideBuy {
		return f.QuoteAsset, f.ExecutedQuote, f.BaseAsset, f.ExecutedBase
	}
	return f.BaseAsset, f.ExecutedBase, f.QuoteAsset, f.ExecutedQuote
}

// Validate checks the fill before any write is attempted.
func (f Fill) Validate() error {
	if f.UserID == "" || f.BaseAsset == "" || f.QuoteAsset == "" || f.BaseAsset == f.QuoteAsset {
		return fmt.Errorf("%w: user and two distinct assets are required", ErrInvalidFill)
	}
	if f.Side != SideBuy && f.Side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidFill, f.Side)
	}
	if !f.ExecutedBase.IsPositive() || !f.ExecutedQuote.IsPositive() {
		return fmt.Errorf("%w: executed quantities must be positive", ErrInvalidFill)
	}
	return nil
}

// FillResult captures post-fill balances of both legs.
type FillResult struct {
	Debited  AssetBalance
	Credited AssetBalance
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	// Balance returns the stored quantity; a missing row reads as zero.
	Balance(ctx context.Context, userID, asset string) (decimal.Decimal, error)
	Balances(ctx context.Context, userID string) ([]AssetBalance, error)
	// ApplyFill debits one leg and credits the other as a single atomic unit.
	ApplyFill(ctx context.Context, fill Fill) (FillResult, error)
	// Credit adds amount to a balance, creating the row if needed. The asset
	// must already be in the catalog.
	Credit(ctx context.Context, userID, asset string, amount decimal.Decimal) (AssetBalance, error)
}

// CheckAvailable reports whether userID holds at least amount of asset.
// It is an advisory gate; ApplyFill re-checks authoritatively.
func CheckAvailable(ctx context.Context, l Ledger, userID, asset string, amount decimal.Decimal) (bool, error) {
	balance, err := l.Balance(ctx, userID, asset)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}
