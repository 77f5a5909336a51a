package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/quotesync/internal/models"
	"github.com/kjannette/quotesync/internal/normalize"
)

// sqliteMaxVars is the default SQLITE_MAX_VARIABLE_NUMBER of modern builds.
const sqliteMaxVars = 32000

// SQLiteStore keeps the four tables in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) SelectKeys(ctx context.Context, table, keyField string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	query := fmt.Sprintf(`SELECT CAST(%s AS TEXT) FROM %s WHERE %s IN (%s)`,
		ident(keyField), ident(table), ident(keyField), marks)

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s from %s: %w", keyField, table, err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("select %s from %s: %w", keyField, table, err)
		}
		found = append(found, k)
	}
	return found, rows.Err()
}

func (s *SQLiteStore) Insert(ctx context.Context, table string, rows []models.Record) error {
	if len(rows) == 0 {
		return nil
	}

	cols := unionColumns(rows)
	perBatch := max(1, sqliteMaxVars/len(cols))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert into %s: begin: %w", table, err)
	}
	defer tx.Rollback()

	for start := 0; start < len(rows); start += perBatch {
		end := min(start+perBatch, len(rows))
		query, args := insertSQL(table, cols, rows[start:end], question)
		if _, err := tx.ExecContext(ctx, query, sqliteArgs(args)...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert into %s: commit: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, table string, row models.Record, keyField, keyValue string) error {
	query, args := updateSQL(table, row, keyField, keyValue, question)
	if query == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, query, sqliteArgs(args)...); err != nil {
		return fmt.Errorf("update %s where %s=%s: %w", table, keyField, keyValue, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the four tables if they do not exist. With
// generatedChange the index change columns are computed by the database.
func (s *SQLiteStore) EnsureSchema(ctx context.Context, generatedChange bool) error {
	for _, stmt := range sqliteSchema(generatedChange) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// sqliteArgs stores timestamps as ISO-8601 text.
func sqliteArgs(args []any) []any {
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			args[i] = t.Format(time.RFC3339Nano)
		}
	}
	return args
}

func sqliteSchema(generatedChange bool) []string {
	details := []string{`"stock_symbol" TEXT PRIMARY KEY`}
	for _, f := range normalize.Fields {
		details = append(details, fmt.Sprintf("%s %s", ident(f.Column), sqliteType(f.Kind)))
	}
	details = append(details,
		ident(normalize.ColumnCurrentPrice)+" TEXT",
		ident(normalize.ColumnUpdatedAt)+" TEXT",
	)

	change := `"change_value" REAL,
			"change_percent" REAL`
	if generatedChange {
		change = `"change_value" REAL GENERATED ALWAYS AS ("last_price" - "previous_close") VIRTUAL,
			"change_percent" REAL GENERATED ALWAYS AS (
				CASE WHEN "previous_close" = 0 THEN 0
				ELSE ("last_price" - "previous_close") / "previous_close" * 100 END) VIRTUAL`
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS "stocks" (
			"symbol" TEXT PRIMARY KEY,
			"name" TEXT,
			"sector" TEXT,
			"current_price" REAL,
			"previous_close" REAL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "stock_details" (
			%s
		)`, strings.Join(details, ",\n\t\t\t")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "index_prices" (
			"symbol" TEXT PRIMARY KEY,
			"name" TEXT,
			"last_price" REAL,
			"previous_close" REAL,
			%s,
			"updated_at" TEXT
		)`, change),
		`CREATE TABLE IF NOT EXISTS "index_price_history" (
			"id" INTEGER PRIMARY KEY AUTOINCREMENT,
			"symbol" TEXT NOT NULL,
			"price" REAL,
			"timestamp" TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS "index_price_history_symbol_ts" ON "index_price_history" ("symbol", "timestamp")`,
	}
}

func sqliteType(k normalize.Kind) string {
	switch k {
	case normalize.KindInt, normalize.KindBool:
		return "INTEGER"
	case normalize.KindFloat:
		return "REAL"
	}
	return "TEXT"
}
