package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/quotesync/internal/models"
)

// pgMaxParams stays under the protocol's 65535 bind parameter limit.
const pgMaxParams = 60000

// PostgresStore writes directly to Postgres through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SelectKeys(ctx context.Context, table, keyField string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	sql := fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s::text = ANY($1)`,
		ident(keyField), ident(table), ident(keyField))
	rows, err := s.pool.Query(ctx, sql, keys)
	if err != nil {
		return nil, fmt.Errorf("select %s from %s: %w", keyField, table, err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("select %s from %s: %w", keyField, table, err)
	}
	return found, nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, rows []models.Record) error {
	if len(rows) == 0 {
		return nil
	}

	cols := unionColumns(rows)
	perBatch := max(1, pgMaxParams/len(cols))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("insert into %s: begin: %w", table, err)
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(rows); start += perBatch {
		end := min(start+perBatch, len(rows))
		sql, args := insertSQL(table, cols, rows[start:end], dollar)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("insert into %s: commit: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, table string, row models.Record, keyField, keyValue string) error {
	sql, args := updateSQL(table, row, keyField, keyValue, dollar)
	if sql == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update %s where %s=%s: %w", table, keyField, keyValue, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- statement builders shared with the sqlite backend ---

type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func insertSQL(table string, cols []string, rows []models.Record, ph placeholder) (string, []any) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", ident(table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, columnValue(r[c]))
			b.WriteString(ph(len(args)))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

func updateSQL(table string, row models.Record, keyField, keyValue string, ph placeholder) (string, []any) {
	cols := without(row.Columns(), keyField)
	if len(cols) == 0 {
		return "", nil
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		args = append(args, columnValue(row[c]))
		sets[i] = ident(c) + " = " + ph(len(args))
	}
	args = append(args, keyValue)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		ident(table), strings.Join(sets, ", "), ident(keyField), ph(len(args)))
	return sql, args
}
