package models

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// PricePoint is one bar of an intraday price series. Close is null for bars
// the provider reported without a trade.
type PricePoint struct {
	Timestamp time.Time  `json:"timestamp"`
	Close     null.Float `json:"close"`
}

type Quote struct {
	ProviderSymbol string              `json:"providerSymbol"`
	Symbol         string              `json:"symbol"`
	Name           string              `json:"name"`
	Sector         string              `json:"sector"`
	CurrentPrice   decimal.NullDecimal `json:"currentPrice"`
	PreviousClose  decimal.NullDecimal `json:"previousClose"`
	FetchedAt      time.Time           `json:"fetchedAt"`

	// Attributes is the raw descriptive bag the provider returned for the symbol.
	Attributes map[string]any `json:"-"`
}

// HasPrice reports whether the provider returned a usable last price.
func (q *Quote) HasPrice() bool {
	return q != nil && q.CurrentPrice.Valid
}
