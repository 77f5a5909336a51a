// Package reconcile writes batches of records into the store: keyed tables
// through a two-phase upsert, history tables as plain appends.
package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kjannette/quotesync/internal/models"
	"github.com/kjannette/quotesync/internal/repository"
)

// Result counts what a write did.
type Result struct {
	Rows     int `json:"rows"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type Engine struct {
	store repository.Store
}

func NewEngine(store repository.Store) *Engine {
	return &Engine{store: store}
}

// Upsert makes every row in rows present in table, keyed by keyField. It
// looks up existing keys once, updates matching rows one at a time in input
// order, then inserts the rest as one batch. The first failed write stops
// the batch.
func (e *Engine) Upsert(ctx context.Context, table, keyField string, rows []models.Record) (Result, error) {
	res := Result{Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key(keyField)
		if keys[i] == "" {
			return res, fmt.Errorf("upsert %s: row %d has no %s", table, i, keyField)
		}
	}

	existing, err := e.store.SelectKeys(ctx, table, keyField, keys)
	if err != nil {
		return res, fmt.Errorf("upsert %s: lookup %d keys: %w", table, len(keys), err)
	}
	present := make(map[string]bool, len(existing))
	for _, k := range existing {
		present[k] = true
	}

	var updates, inserts []models.Record
	for i, r := range rows {
		if present[keys[i]] {
			updates = append(updates, r)
		} else {
			inserts = append(inserts, r)
		}
	}

	for _, r := range updates {
		key := r.Key(keyField)
		if err := e.store.Update(ctx, table, r, keyField, key); err != nil {
			return res, fmt.Errorf("upsert %s: update %s=%s (%d of %d updates done, %d inserts pending): %w",
				table, keyField, key, res.Updated, len(updates), len(inserts), err)
		}
		res.Updated++
	}

	if len(inserts) > 0 {
		if err := e.store.Insert(ctx, table, inserts); err != nil {
			return res, fmt.Errorf("upsert %s: insert %d rows: %w", table, len(inserts), err)
		}
		res.Inserted = len(inserts)
	}

	return res, nil
}

// Append inserts rows as one batch without looking at keys.
func (e *Engine) Append(ctx context.Context, table string, rows []models.Record) (Result, error) {
	res := Result{Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}
	if err := e.store.Insert(ctx, table, rows); err != nil {
		return res, fmt.Errorf("append %s: insert %d rows: %w", table, len(rows), err)
	}
	res.Inserted = len(rows)
	return res, nil
}

// DeriveChange returns current-previous and that change as a percentage of
// previous, rounded to four places. A zero previous close yields a zero
// percentage. Either input missing yields no change.
func DeriveChange(current, previous decimal.NullDecimal) (change, percent decimal.NullDecimal) {
	if !current.Valid || !previous.Valid {
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}

	diff := current.Decimal.Sub(previous.Decimal)
	pct := decimal.Zero
	if !previous.Decimal.IsZero() {
		pct = diff.Div(previous.Decimal).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return decimal.NewNullDecimal(diff), decimal.NewNullDecimal(pct)
}
