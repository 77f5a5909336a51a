// Package fetcher turns one provider symbol into a Quote.
package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/quotesync/internal/models"
	"github.com/kjannette/quotesync/internal/normalize"
)

const (
	SeriesRange    = "1d"
	SeriesInterval = "1m"

	Unknown = "Unknown"
)

// MarketData is the subset of the quotes provider the fetcher needs.
type MarketData interface {
	FetchPriceSeries(ctx context.Context, symbol, rng, interval string) ([]models.PricePoint, error)
	FetchAttributes(ctx context.Context, symbol string) (map[string]any, error)
}

type Fetcher struct {
	provider MarketData
	now      func() time.Time
}

func New(provider MarketData, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{provider: provider, now: now}
}

// Fetch reads the latest intraday price and the attribute bag for pair.
// A quote without a valid CurrentPrice means the provider had no data; an
// error means the provider call failed.
func (f *Fetcher) Fetch(ctx context.Context, pair models.SymbolPair) (*models.Quote, error) {
	series, err := f.provider.FetchPriceSeries(ctx, pair.Provider, SeriesRange, SeriesInterval)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", pair.Provider, err)
	}

	q := &models.Quote{
		ProviderSymbol: pair.Provider,
		Symbol:         pair.Canonical,
		Name:           Unknown,
		Sector:         Unknown,
		FetchedAt:      f.now(),
	}

	price, ok := LastClose(series)
	if !ok {
		return q, nil
	}
	q.CurrentPrice = decimal.NewNullDecimal(decimal.NewFromFloat(price))

	attrs, err := f.provider.FetchAttributes(ctx, pair.Provider)
	if err != nil {
		return nil, fmt.Errorf("fetch attributes %s: %w", pair.Provider, err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	q.Attributes = attrs
	q.Name = textOr(attrs, "longName", Unknown)
	q.Sector = textOr(attrs, "sector", Unknown)

	if prev := normalize.Float(attrs, "previousClose"); prev.Valid {
		q.PreviousClose = decimal.NewNullDecimal(decimal.NewFromFloat(prev.Float64))
	}

	return q, nil
}

// LastClose returns the close of the latest bar that has one.
func LastClose(series []models.PricePoint) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Close.Valid {
			return series[i].Close.Float64, true
		}
	}
	return 0, false
}

func textOr(attrs map[string]any, key, fallback string) string {
	s := normalize.String(attrs, key)
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return fallback
	}
	return s.String
}
