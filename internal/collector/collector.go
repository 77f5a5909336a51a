// Package collector runs one fetch-and-sync cycle over the symbol universe.
package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/quotesync/internal/models"
	"github.com/kjannette/quotesync/internal/normalize"
	"github.com/kjannette/quotesync/internal/reconcile"
)

// QuoteFetcher fetches one symbol. A quote without a price means no data.
type QuoteFetcher interface {
	Fetch(ctx context.Context, pair models.SymbolPair) (*models.Quote, error)
}

type Options struct {
	Universe models.Universe
	Fetcher  QuoteFetcher
	Engine   *reconcile.Engine
	// DeriveChange adds change_value and change_percent to index rows. Leave
	// it off when the store computes them as generated columns.
	DeriveChange bool
	Clock        func() time.Time
	Logger       zerolog.Logger
}

type Collector struct {
	universe     models.Universe
	fetcher      QuoteFetcher
	engine       *reconcile.Engine
	deriveChange bool
	now          func() time.Time
	log          zerolog.Logger
}

func New(opts Options) *Collector {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Collector{
		universe:     opts.Universe,
		fetcher:      opts.Fetcher,
		engine:       opts.Engine,
		deriveChange: opts.DeriveChange,
		now:          now,
		log:          opts.Logger,
	}
}

// batch holds one cycle's rows per table.
type batch struct {
	stocks  []models.Record
	details []models.Record
	indices []models.Record
	history []models.Record
}

// RunCycle fetches every symbol in order, then writes stocks, stock_details,
// index_prices and index_price_history. Symbol failures skip the symbol and
// table failures skip the table; neither stops the cycle.
func (c *Collector) RunCycle(ctx context.Context) *CycleReport {
	started := c.now()
	report := newReport(started)

	var b batch

	for _, pair := range c.universe.Stocks {
		q, ok := c.fetch(ctx, pair, "stock", report)
		if !ok {
			continue
		}
		b.stocks = append(b.stocks, stockRow(q))
		b.details = append(b.details, detailRow(q))
	}

	for _, pair := range c.universe.Indices {
		q, ok := c.fetch(ctx, pair, "index", report)
		if !ok {
			continue
		}
		b.indices = append(b.indices, c.indexRow(q, started))
		b.history = append(b.history, historyRow(q, started))
	}

	if err := ctx.Err(); err != nil {
		report.Aborted = err.Error()
		report.FinishedAt = c.now()
		c.log.Warn().Err(err).Msg("cycle cancelled before writing")
		return report
	}

	c.write(report, models.TableStocks, b.stocks, func() (reconcile.Result, error) {
		return c.engine.Upsert(ctx, models.TableStocks, models.KeySymbol, b.stocks)
	})
	c.write(report, models.TableStockDetails, b.details, func() (reconcile.Result, error) {
		return c.engine.Upsert(ctx, models.TableStockDetails, models.KeyStockSymbol, b.details)
	})
	c.write(report, models.TableIndexPrices, b.indices, func() (reconcile.Result, error) {
		return c.engine.Upsert(ctx, models.TableIndexPrices, models.KeySymbol, b.indices)
	})
	c.write(report, models.TableIndexHistory, b.history, func() (reconcile.Result, error) {
		return c.engine.Append(ctx, models.TableIndexHistory, b.history)
	})

	report.FinishedAt = c.now()
	return report
}

func (c *Collector) fetch(ctx context.Context, pair models.SymbolPair, kind string, report *CycleReport) (*models.Quote, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	q, err := c.fetcher.Fetch(ctx, pair)
	if err != nil {
		report.FetchErrors[pair.Canonical] = err.Error()
		c.log.Warn().Err(err).
			Str("kind", kind).
			Str("symbol", pair.Canonical).
			Str("provider_symbol", pair.Provider).
			Msg("fetch failed, skipping symbol")
		return nil, false
	}
	if !q.HasPrice() {
		report.Skipped = append(report.Skipped, pair.Canonical)
		c.log.Info().
			Str("kind", kind).
			Str("symbol", pair.Canonical).
			Msg("no price, skipping symbol")
		return nil, false
	}

	report.Fetched = append(report.Fetched, pair.Canonical)
	return q, true
}

func (c *Collector) write(report *CycleReport, table string, rows []models.Record, op func() (reconcile.Result, error)) {
	if len(rows) == 0 {
		return
	}

	res, err := op()
	out := TableOutcome{Table: table, Rows: len(rows), Inserted: res.Inserted, Updated: res.Updated}
	if err != nil {
		out.Error = err.Error()
		c.log.Error().Err(err).
			Str("table", table).
			Int("rows", len(rows)).
			Msg("table write failed")
	} else {
		c.log.Info().
			Str("table", table).
			Int("rows", len(rows)).
			Int("inserted", res.Inserted).
			Int("updated", res.Updated).
			Msg("table synced")
	}
	report.Tables = append(report.Tables, out)
}

func stockRow(q *models.Quote) models.Record {
	return models.Record{
		"symbol":         q.Symbol,
		"name":           q.Name,
		"sector":         q.Sector,
		"current_price":  q.CurrentPrice,
		"previous_close": q.PreviousClose,
	}
}

func detailRow(q *models.Quote) models.Record {
	row := normalize.Normalize(q.Attributes, q.FetchedAt)
	row[models.KeyStockSymbol] = q.Symbol
	return row
}

func (c *Collector) indexRow(q *models.Quote, at time.Time) models.Record {
	row := models.Record{
		"symbol":         q.Symbol,
		"name":           q.Name,
		"last_price":     q.CurrentPrice,
		"previous_close": q.PreviousClose,
		"updated_at":     at,
	}
	if c.deriveChange {
		change, pct := reconcile.DeriveChange(q.CurrentPrice, q.PreviousClose)
		row["change_value"] = change
		row["change_percent"] = pct
	}
	return row
}

func historyRow(q *models.Quote, at time.Time) models.Record {
	return models.Record{
		"symbol":    q.Symbol,
		"price":     q.CurrentPrice,
		"timestamp": at,
	}
}
