package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kjannette/quotesync/internal/models"
)

const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"

	ChangeFromStore  = "store"
	ChangeFromEngine = "engine"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

type Config struct {
	// Store
	StoreBackend string
	SupabaseURL  string
	SupabaseKey  string
	DatabaseURL  string
	SQLitePath   string

	// Symbols
	SymbolsFile string
	Universe    models.Universe

	// Market window
	MarketTimezone      string
	Location            *time.Location
	MarketOpenHour      int
	MarketCloseHour     int
	MarketWakeMinute    int
	PollIntervalMinutes int
	TradingCalendarMIC  string

	// Sync
	IndexChangeSource string

	// Provider
	ProviderChartURL       string
	ProviderSummaryURL     string
	ProviderTimeoutSeconds int
	ProviderMaxAttempts    int
	ProviderUserAgent      string

	// Status API
	StatusAddr      string
	StatusAPIKey    string
	CORSAllowOrigin string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Store
		StoreBackend: strings.ToLower(envStr("STORE_BACKEND", BackendSupabase)),
		SupabaseURL:  strings.TrimRight(envStr("SUPABASE_URL", ""), "/"),
		SupabaseKey:  envStr("SUPABASE_KEY", ""),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		SQLitePath:   envStr("SQLITE_PATH", "quotesync.db"),

		// Symbols
		SymbolsFile: envStr("SYMBOLS_FILE", ""),
		Universe:    models.DefaultUniverse(),

		// Market window
		MarketTimezone:      envStr("MARKET_TIMEZONE", "Asia/Jakarta"),
		MarketOpenHour:      envInt("MARKET_OPEN_HOUR", 9),
		MarketCloseHour:     envInt("MARKET_CLOSE_HOUR", 16),
		MarketWakeMinute:    envInt("MARKET_WAKE_MINUTE", 10),
		PollIntervalMinutes: envInt("POLL_INTERVAL_MINUTES", 5),
		TradingCalendarMIC:  strings.ToLower(envStr("TRADING_CALENDAR_MIC", "")),

		// Sync
		IndexChangeSource: strings.ToLower(envStr("INDEX_CHANGE_SOURCE", ChangeFromStore)),

		// Provider
		ProviderChartURL:       envStr("PROVIDER_CHART_URL", "https://query1.finance.yahoo.com"),
		ProviderSummaryURL:     envStr("PROVIDER_SUMMARY_URL", "https://query2.finance.yahoo.com"),
		ProviderTimeoutSeconds: envInt("PROVIDER_TIMEOUT_SECONDS", 15),
		ProviderMaxAttempts:    envInt("PROVIDER_MAX_ATTEMPTS", 1),
		ProviderUserAgent:      envStr("PROVIDER_USER_AGENT", DefaultUserAgent),

		// Status API
		StatusAddr:      envStr("STATUS_ADDR", ""),
		StatusAPIKey:    envStr("STATUS_API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Logging
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "console"),
	}

	if cfg.SymbolsFile != "" {
		u, err := LoadUniverse(cfg.SymbolsFile)
		if err != nil {
			return nil, err
		}
		cfg.Universe = u
	}

	cfg.Location = LoadLocation(cfg.MarketTimezone)

	return cfg, nil
}

// LoadUniverse reads a YAML symbol universe:
//
//	indices:
//	  - {provider: "^JKSE", canonical: "IHSG"}
//	stocks:
//	  - {provider: "BBCA.JK", canonical: "BBCA"}
func LoadUniverse(path string) (models.Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Universe{}, fmt.Errorf("failed to read symbols file '%s': %w", path, err)
	}

	var u models.Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return models.Universe{}, fmt.Errorf("failed to parse symbols file '%s': %w", path, err)
	}
	return u, nil
}

// LoadLocation resolves the market time zone. Hosts without tzdata still get
// the Jakarta offset.
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("WIB", 7*60*60)
}

func (c *Config) Validate() error {
	var errs []string

	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errs = append(errs, "SUPABASE_URL is required for the supabase backend")
		}
		if c.SupabaseKey == "" {
			errs = append(errs, "SUPABASE_KEY is required for the supabase backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND %q is not one of supabase, postgres, sqlite, memory", c.StoreBackend))
	}

	if c.MarketOpenHour < 0 || c.MarketOpenHour > 23 {
		errs = append(errs, "MARKET_OPEN_HOUR must be between 0 and 23")
	}
	if c.MarketCloseHour < 1 || c.MarketCloseHour > 24 {
		errs = append(errs, "MARKET_CLOSE_HOUR must be between 1 and 24")
	}
	if c.MarketOpenHour >= c.MarketCloseHour {
		errs = append(errs, "MARKET_OPEN_HOUR must be before MARKET_CLOSE_HOUR")
	}
	if c.MarketWakeMinute < 0 || c.MarketWakeMinute > 59 {
		errs = append(errs, "MARKET_WAKE_MINUTE must be between 0 and 59")
	}
	if c.PollIntervalMinutes <= 0 {
		errs = append(errs, "POLL_INTERVAL_MINUTES must be greater than 0")
	}

	if c.IndexChangeSource != ChangeFromStore && c.IndexChangeSource != ChangeFromEngine {
		errs = append(errs, fmt.Sprintf("INDEX_CHANGE_SOURCE %q is not one of store, engine", c.IndexChangeSource))
	}

	if c.ProviderTimeoutSeconds <= 0 {
		errs = append(errs, "PROVIDER_TIMEOUT_SECONDS must be greater than 0")
	}
	if c.ProviderMaxAttempts < 1 {
		errs = append(errs, "PROVIDER_MAX_ATTEMPTS must be at least 1")
	}

	if err := c.Universe.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Warnings lists settings that are valid but probably unintended.
func (c *Config) Warnings() []string {
	var warns []string
	if c.StatusAddr != "" && c.StatusAPIKey == "" {
		warns = append(warns, "STATUS_API_KEY not set, status API has no authentication")
	}
	if c.StoreBackend == BackendMemory {
		warns = append(warns, "memory backend selected, nothing will be persisted")
	}
	if c.Location != nil && c.Location.String() != c.MarketTimezone {
		warns = append(warns, fmt.Sprintf("time zone %q not found, using fixed UTC+7", c.MarketTimezone))
	}
	return warns
}

func (c *Config) Print(log zerolog.Logger) {
	ev := log.Info().
		Str("store", c.StoreBackend).
		Int("indices", len(c.Universe.Indices)).
		Int("stocks", len(c.Universe.Stocks)).
		Str("timezone", c.Location.String()).
		Str("window", fmt.Sprintf("%02d:00-%02d:00", c.MarketOpenHour, c.MarketCloseHour)).
		Str("wake", fmt.Sprintf("%02d:%02d", c.MarketOpenHour, c.MarketWakeMinute)).
		Int("interval_min", c.PollIntervalMinutes).
		Str("calendar", boolLabel(c.TradingCalendarMIC != "", c.TradingCalendarMIC, "none")).
		Str("index_change", c.IndexChangeSource).
		Int("provider_attempts", c.ProviderMaxAttempts)

	switch c.StoreBackend {
	case BackendSupabase:
		ev = ev.Str("supabase_url", c.SupabaseURL).Str("supabase_key", mask(c.SupabaseKey))
	case BackendPostgres:
		ev = ev.Str("database_url", maskDSN(c.DatabaseURL))
	case BackendSQLite:
		ev = ev.Str("sqlite_path", c.SQLitePath)
	}
	if c.SymbolsFile != "" {
		ev = ev.Str("symbols_file", c.SymbolsFile)
	}
	if c.StatusAddr != "" {
		ev = ev.Str("status_addr", c.StatusAddr)
	}
	ev.Msg("configuration loaded")

	for _, w := range c.Warnings() {
		log.Warn().Msg(w)
	}
}

// PollInterval is the sleep between cycles while the market is open.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func mask(secret string) string {
	if secret == "" {
		return "not set"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// maskDSN hides the password of a postgres URL.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":****"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
