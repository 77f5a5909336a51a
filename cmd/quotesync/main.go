package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/quotesync/internal/api"
	"github.com/kjannette/quotesync/internal/collector"
	"github.com/kjannette/quotesync/internal/config"
	"github.com/kjannette/quotesync/internal/db"
	"github.com/kjannette/quotesync/internal/external"
	"github.com/kjannette/quotesync/internal/fetcher"
	"github.com/kjannette/quotesync/internal/httputil"
	"github.com/kjannette/quotesync/internal/logging"
	"github.com/kjannette/quotesync/internal/reconcile"
	"github.com/kjannette/quotesync/internal/repository"
	"github.com/kjannette/quotesync/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	cfg.Print(log)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logging.Component(log, "store"))
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store setup failed")
	}
	defer closeStore()

	yahoo := external.NewYahooClient(external.YahooOptions{
		ChartBaseURL:   cfg.ProviderChartURL,
		SummaryBaseURL: cfg.ProviderSummaryURL,
		UserAgent:      cfg.ProviderUserAgent,
		Timeout:        cfg.ProviderTimeout(),
		Policy: httputil.Policy{
			MaxAttempts: cfg.ProviderMaxAttempts,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Logger:      logging.Component(log, "provider"),
		},
	})

	coll := collector.New(collector.Options{
		Universe:     cfg.Universe,
		Fetcher:      fetcher.New(yahoo, time.Now),
		Engine:       reconcile.NewEngine(store),
		DeriveChange: cfg.IndexChangeSource == config.ChangeFromEngine,
		Logger:       logging.Component(log, "collector"),
	})

	window := scheduler.Window{
		Location:   cfg.Location,
		OpenHour:   cfg.MarketOpenHour,
		CloseHour:  cfg.MarketCloseHour,
		WakeMinute: cfg.MarketWakeMinute,
	}
	if cfg.TradingCalendarMIC != "" {
		cal, err := scheduler.MarketCalendar(cfg.TradingCalendarMIC)
		if err != nil {
			log.Fatal().Err(err).Msg("trading calendar")
		}
		window.Calendar = cal
	}

	sched := scheduler.New(coll, scheduler.Config{
		Window:   window,
		Interval: cfg.PollInterval(),
		Logger:   logging.Component(log, "scheduler"),
	})

	var srv *api.Server
	if cfg.StatusAddr != "" {
		pinger, _ := store.(repository.Pinger)
		srv = api.NewServer(api.Options{
			Addr:       cfg.StatusAddr,
			APIKey:     cfg.StatusAPIKey,
			CORSOrigin: cfg.CORSAllowOrigin,
			Store:      pinger,
			Status:     sched.Status,
			Universe:   cfg.Universe,
			Logger:     logging.Component(log, "api"),
		})
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("status API stopped")
				stop()
			}
		}()
	}

	log.Info().Msg("all services started")

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("scheduler stopped")
	}

	log.Info().Msg("shutting down gracefully")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status API shutdown")
		}
	}
	log.Info().Msg("shutdown complete")
}

// openStore builds the table client for the configured backend. The returned
// func releases its connections.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		log.Info().Str("url", cfg.SupabaseURL).Msg("using supabase REST store")
		return repository.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.ProviderTimeout()), func() {}, nil

	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		serverTime, err := db.TestConnection(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Time("server_time", serverTime).Msg("connected to postgres")
		return repository.NewPostgresStore(pool), func() {
			pool.Close()
			log.Info().Msg("connection pool closed")
		}, nil

	case config.BackendSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s := repository.NewSQLiteStore(conn)
		if err := s.EnsureSchema(ctx, cfg.IndexChangeSource == config.ChangeFromStore); err != nil {
			conn.Close()
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite schema ready")
		return s, func() { conn.Close() }, nil

	case config.BackendMemory:
		return repository.NewMemoryStore(nil), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
