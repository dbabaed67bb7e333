package wallet

import "github.com/shopspring/decimal"

// displayPlaces is the precision balances are rendered with.
const displayPlaces = 8

// AssetView is one asset line of the wallet screen.
type AssetView struct {
	Available string `json:"available"`
	OnOrder   string `json:"onOrder"`
}

// Summary maps asset symbol to its view.
type Summary map[string]AssetView

func newAssetView(available decimal.Decimal) AssetView {
	// Market orders settle immediately, so nothing is ever held on order.
	return AssetView{
		Available: available.StringFixed(displayPlaces),
		OnOrder:   decimal.Zero.StringFixed(displayPlaces),
	}
}
