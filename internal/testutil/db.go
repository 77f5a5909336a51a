package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kjannette/quotesync/internal/db"
	"github.com/kjannette/quotesync/internal/repository"
)

// SetupPool creates a pgxpool.Pool for integration tests. Tests are skipped
// unless TEST_DATABASE_URL is set (directly or in the repo's .env).
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping")
	}

	pool, err := db.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// SetupSQLiteStore returns a store over a fresh in-memory database with the
// four tables created.
func SetupSQLiteStore(t *testing.T, generatedChange bool) *repository.SQLiteStore {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	store := repository.NewSQLiteStore(conn)
	if err := store.EnsureSchema(context.Background(), generatedChange); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}
