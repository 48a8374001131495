package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"bucket-list/internal/bot"
	"bucket-list/internal/config"
	"bucket-list/internal/logger"
	"bucket-list/internal/observability"
	"bucket-list/internal/repository"
	"bucket-list/internal/service"
	"bucket-list/internal/store"
)

const (
	serviceName     = "bucket-list"
	persistAttempts = 3
	persistBackoff  = 100 * time.Millisecond
)

var dbFlag string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bucketlist",
		Short:         "Summer bucket list tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (overrides BUCKETLIST_DATABASE_URL)")

	root.AddCommand(newServeCmd())
	for _, cmd := range newDataCmds() {
		root.AddCommand(cmd)
	}
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot with snapshot polling and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if dbFlag != "" {
		cfg.DatabaseURL = dbFlag
	}
	return cfg, nil
}

// app holds the opened database and both stores.
type app struct {
	db         *gorm.DB
	kv         *repository.KVRepository
	activities *store.ActivityStore
	settings   *store.SettingsStore
}

func openApp(ctx context.Context, dsn string, log zerolog.Logger, opts ...store.Option) (*app, error) {
	db, err := repository.NewDB(dsn, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	kv := repository.NewKVRepository(db)
	a := &app{
		db:         db,
		kv:         kv,
		activities: store.NewActivityStore(kv, opts...),
		settings:   store.NewSettingsStore(kv, opts...),
	}
	if err := a.activities.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.settings.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close drains pending writes and releases the database.
func (a *app) close() {
	a.activities.Close()
	a.settings.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	log := logger.New(serviceName, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	opts := []store.Option{
		store.WithLogger(log),
		store.WithMetrics(metrics),
		store.WithRetry(persistAttempts, persistBackoff),
	}

	a, err := openApp(ctx, cfg.DatabaseURL, log, opts...)
	if err != nil {
		return err
	}
	defer a.close()

	replica := store.NewActivityStore(a.kv, store.WithLogger(log.With().Str("store", "replica").Logger()))
	defer replica.Close()

	scheduler := service.NewSchedulerService(cfg.Location())
	watcher := service.NewWatcherService(replica, scheduler, cfg.PollInterval, log)
	watcher.Poll()
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("schedule polling: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	go watcher.ExportProgress(ctx, metrics, cfg.Location())

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go serveMetrics(srv, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	profile := service.NewProfileService(a.activities, a.settings)
	reports := service.NewReportService(cfg.Location())
	telegramBot, err := bot.New(&cfg, a.activities, a.settings, profile, reports, log)
	if err != nil {
		return err
	}

	log.Info().Str("db", cfg.DatabaseURL).Msg("bucket list bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func serveMetrics(srv *http.Server, log zerolog.Logger) {
	log.Info().Str("addr", srv.Addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server")
	}
}
