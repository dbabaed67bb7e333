package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that sets a balance when using the in-memory ledger.
func SeedBalance(l Ledger, userID, asset, amount string) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[balanceKey{userID, asset}] = decimal.RequireFromString(amount)
		mem.assets[asset] = struct{}{}
	}
}
