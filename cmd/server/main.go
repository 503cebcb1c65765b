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

	"hostdesk/internal/api"
	"hostdesk/internal/config"
	"hostdesk/internal/datetime"
	"hostdesk/internal/events"
	"hostdesk/internal/journal"
	"hostdesk/internal/metrics"
	"hostdesk/internal/queue"
	"hostdesk/internal/web"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		boot.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load config")
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, _ := cfg.Location()
	var m *metrics.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		m = metrics.New("hostdesk", nil)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.APITimeout(), &logger)
	client.UseMetrics(m)
	client.UseRateLimit(cfg.API.RateLimitRPS, cfg.RateLimitBurst())

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.APICacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.APICacheTTL(), "hostdesk")
	}

	bus := events.NewBus()

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path, m, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open journal error")
		}
		defer store.Close()
		store.Subscribe(bus)

		if interval := cfg.JournalBackupInterval(); interval > 0 {
			go startBackupLoop(ctx, store, cfg.Journal.BackupDir, interval, cfg.JournalRetention(), &logger)
		}
	}

	if cfg.AMQP.URL != "" {
		pub := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQPQueue(), nil, &logger)
		pub.Forward(bus)
		go pub.Run(ctx)
	}

	if err := config.Watch(ctx, cfgPath, 30*time.Second, func(updated *config.Config) {
		zerolog.SetGlobalLevel(updated.LogLevel())
		logger.Info().Str("level", updated.LogLevel().String()).Msg("config reloaded")
	}); err != nil {
		logger.Error().Err(err).Msg("config watch failed")
	}

	opts := web.Options{
		Clock:       datetime.SystemClock(loc),
		Location:    loc,
		LoadTimeout: cfg.LoadTimeout(),
		Events:      bus,
		Metrics:     m,
		Logger:      &logger,
	}
	if store != nil {
		opts.Journal = store
	}
	handler := web.NewHandler(client, opts)

	go startHealthServer(ctx, cfg.HealthCheckPort(), client, store, rdb, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.PrometheusPort(), &logger)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", srv.Addr).Str("api", cfg.API.BaseURL).Msg("dashboard server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("dashboard server error")
	}
	logger.Info().Msg("dashboard server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if cfg.Logging.Console {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func startBackupLoop(ctx context.Context, store *journal.Store, dir string, interval, retention time.Duration, logger *zerolog.Logger) {
	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(ctx, store, dir, retention, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(ctx, store, dir, retention, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(ctx context.Context, store *journal.Store, dir string, retention time.Duration, logger *zerolog.Logger) {
	if _, err := store.Backup(ctx, dir); err != nil {
		logger.Error().Err(err).Msg("journal backup failed")
	}

	deleted, err := journal.CleanupBackups(dir, retention)
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func startHealthServer(ctx context.Context, port int, client *api.Client, store *journal.Store, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "reservations api not ready", http.StatusServiceUnavailable)
			return
		}
		if store != nil {
			if err := store.Ping(ctxPing); err != nil {
				http.Error(w, "journal not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
