package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/quotesync/internal/models"
)

var envKeys = []string{
	"STORE_BACKEND", "SUPABASE_URL", "SUPABASE_KEY", "DATABASE_URL", "SQLITE_PATH",
	"SYMBOLS_FILE", "MARKET_TIMEZONE", "MARKET_OPEN_HOUR", "MARKET_CLOSE_HOUR",
	"MARKET_WAKE_MINUTE", "POLL_INTERVAL_MINUTES", "TRADING_CALENDAR_MIC",
	"INDEX_CHANGE_SOURCE", "PROVIDER_TIMEOUT_SECONDS", "PROVIDER_MAX_ATTEMPTS",
	"STATUS_ADDR", "STATUS_API_KEY", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir()) // no .env

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StoreBackend != BackendSupabase {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.MarketOpenHour != 9 || cfg.MarketCloseHour != 16 || cfg.MarketWakeMinute != 10 {
		t.Errorf("window = %d-%d wake :%d", cfg.MarketOpenHour, cfg.MarketCloseHour, cfg.MarketWakeMinute)
	}
	if cfg.PollInterval().Minutes() != 5 {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.IndexChangeSource != ChangeFromStore {
		t.Errorf("IndexChangeSource = %q", cfg.IndexChangeSource)
	}
	if cfg.ProviderMaxAttempts != 1 {
		t.Errorf("ProviderMaxAttempts = %d, want 1", cfg.ProviderMaxAttempts)
	}
	if cfg.Universe.Len() != 23 {
		t.Errorf("Universe.Len = %d, want 23", cfg.Universe.Len())
	}
	if cfg.Location == nil {
		t.Fatal("Location is nil")
	}
	_, offset := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC).In(cfg.Location).Zone()
	if offset != 7*3600 {
		t.Errorf("market offset = %d, want UTC+7", offset)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co/")
	t.Setenv("POLL_INTERVAL_MINUTES", "2")
	t.Setenv("INDEX_CHANGE_SOURCE", "Engine")
	t.Setenv("MARKET_OPEN_HOUR", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != BackendSQLite {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.SupabaseURL != "https://x.supabase.co" {
		t.Errorf("SupabaseURL = %q", cfg.SupabaseURL)
	}
	if cfg.PollIntervalMinutes != 2 {
		t.Errorf("PollIntervalMinutes = %d", cfg.PollIntervalMinutes)
	}
	if cfg.IndexChangeSource != ChangeFromEngine {
		t.Errorf("IndexChangeSource = %q", cfg.IndexChangeSource)
	}
	if cfg.MarketOpenHour != 9 {
		t.Errorf("malformed int should fall back to default, got %d", cfg.MarketOpenHour)
	}
}

func TestLoad_SymbolsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "symbols.yaml")
	yml := `indices:
  - {provider: "^JKSE", canonical: "IHSG"}
stocks:
  - provider: "BBCA.JK"
    canonical: "BBCA"
  - provider: "BBRI.JK"
    canonical: "BBRI"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYMBOLS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Universe.Indices) != 1 || len(cfg.Universe.Stocks) != 2 {
		t.Fatalf("universe = %+v", cfg.Universe)
	}
	if cfg.Universe.Stocks[1].Provider != "BBRI.JK" || cfg.Universe.Stocks[1].Canonical != "BBRI" {
		t.Errorf("stocks[1] = %+v", cfg.Universe.Stocks[1])
	}
}

func TestLoad_SymbolsFileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("SYMBOLS_FILE", filepath.Join(dir, "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing symbols file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("stocks: [this is: not valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYMBOLS_FILE", bad)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func validConfig() *Config {
	return &Config{
		StoreBackend:           BackendSupabase,
		SupabaseURL:            "https://x.supabase.co",
		SupabaseKey:            "secret-service-key",
		MarketOpenHour:         9,
		MarketCloseHour:        16,
		MarketWakeMinute:       10,
		PollIntervalMinutes:    5,
		IndexChangeSource:      ChangeFromStore,
		ProviderTimeoutSeconds: 15,
		ProviderMaxAttempts:    1,
		MarketTimezone:         "UTC",
		Location:               time.UTC,
		Universe:               models.DefaultUniverse(),
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"missing supabase creds", func(c *Config) { c.SupabaseURL, c.SupabaseKey = "", "" },
			[]string{"SUPABASE_URL", "SUPABASE_KEY"}},
		{"postgres needs dsn", func(c *Config) { c.StoreBackend = BackendPostgres }, []string{"DATABASE_URL"}},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, []string{"STORE_BACKEND"}},
		{"memory needs nothing", func(c *Config) { c.StoreBackend = BackendMemory; c.SupabaseURL = "" }, nil},
		{"window inverted", func(c *Config) { c.MarketOpenHour = 16; c.MarketCloseHour = 9 },
			[]string{"before MARKET_CLOSE_HOUR"}},
		{"wake minute", func(c *Config) { c.MarketWakeMinute = 60 }, []string{"MARKET_WAKE_MINUTE"}},
		{"interval", func(c *Config) { c.PollIntervalMinutes = 0 }, []string{"POLL_INTERVAL_MINUTES"}},
		{"change source", func(c *Config) { c.IndexChangeSource = "both" }, []string{"INDEX_CHANGE_SOURCE"}},
		{"attempts", func(c *Config) { c.ProviderMaxAttempts = 0 }, []string{"PROVIDER_MAX_ATTEMPTS"}},
		{"empty universe", func(c *Config) { c.Universe.Indices, c.Universe.Stocks = nil, nil },
			[]string{"universe is empty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q missing %q", err, w)
				}
			}
		})
	}
}

func TestPrint_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	c := validConfig()
	c.Print(log)
	out := buf.String()
	if strings.Contains(out, "secret-service-key") {
		t.Fatalf("key leaked: %s", out)
	}
	if !strings.Contains(out, "secr...-key") {
		t.Errorf("expected masked key in %s", out)
	}

	buf.Reset()
	c.StoreBackend = BackendPostgres
	c.DatabaseURL = "postgres://quotes:hunter2@db:5432/market"
	c.Print(log)
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("password leaked: %s", buf.String())
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	loc := LoadLocation("Not/AZone")
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).In(loc).Zone()
	if offset != 7*3600 {
		t.Fatalf("fallback offset = %d", offset)
	}
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@h:5432/d":    "postgres://u:****@h:5432/d",
		"postgres://u@h/d":           "postgres://u@h/d",
		"host=localhost dbname=x":    "host=localhost dbname=x",
		"postgres://u:p%40ss@h:1/db": "postgres://u:****@h:1/db",
	}
	for in, want := range cases {
		if got := maskDSN(in); got != want {
			t.Errorf("maskDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWarnings(t *testing.T) {
	c := validConfig()
	if w := c.Warnings(); len(w) != 0 {
		t.Fatalf("unexpected warnings: %v", w)
	}
	c.StatusAddr = ":8080"
	c.StoreBackend = BackendMemory
	if w := c.Warnings(); len(w) != 2 {
		t.Fatalf("warnings = %v", w)
	}
}
