package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/kjannette/quotesync/internal/models"
)

// Store is the table client the sync engine writes through. Every backend
// speaks the same three primitives.
type Store interface {
	// SelectKeys returns the subset of keys already present in table.
	SelectKeys(ctx context.Context, table, keyField string, keys []string) ([]string, error)
	// Insert writes rows as one batch.
	Insert(ctx context.Context, table string, rows []models.Record) error
	// Update overwrites the row whose keyField equals keyValue.
	Update(ctx context.Context, table string, row models.Record, keyField, keyValue string) error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrBadIdentifier = errors.New("invalid identifier")
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrBadIdentifier, n)
		}
	}
	return nil
}

// unionColumns returns the sorted union of the rows' column names.
func unionColumns(rows []models.Record) []string {
	if len(rows) == 1 {
		return rows[0].Columns()
	}
	merged := make(models.Record)
	for _, r := range rows {
		for c := range r {
			merged[c] = nil
		}
	}
	return merged.Columns()
}

func without(cols []string, drop string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}
