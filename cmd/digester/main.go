package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"channel_digest/internal/api"
	"channel_digest/internal/config"
	"channel_digest/internal/lock"
	"channel_digest/internal/notify"
	"channel_digest/internal/publisher"
	"channel_digest/internal/service"
	"channel_digest/internal/source/youtube"
	"channel_digest/internal/storage/postgres"
	"channel_digest/internal/summarize"
	"channel_digest/internal/transcript"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("digester stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	pages := youtube.NewPageClient(youtube.PageConfig{
		WatchURL: cfg.YouTube.WatchURL,
		Language: cfg.Transcript.Language,
		Timeout:  cfg.YouTube.Timeout,
	}, logger)
	extractor := transcript.NewExtractor(pages, cfg.Transcript.Language, logger)

	summarizer := summarize.New(summarize.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		JSONMode:    *cfg.OpenAI.JSONMode,
		Timeout:     cfg.OpenAI.Timeout,
	}, logger)

	notifier, err := newNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}

	artifactStore := postgres.NewArtifactStore(db)
	channelStore := postgres.NewChannelStore(db)
	subscriberStore := postgres.NewSubscriberStore(db)

	deps := service.Dependencies{
		Source:      source,
		Extractor:   extractor,
		Transformer: summarizer,
		Artifacts:   artifactStore,
		Channels:    channelStore,
		Subscribers: subscriberStore,
		Notifier:    notifier,
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		deps.Publisher = rabbitMQ
	}

	if cfg.Redis.Addr != "" {
		redisLock, err := lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.LockTTL,
		}, logger)
		if err != nil {
			return err
		}
		defer redisLock.Close()
		deps.Locker = redisLock
		logger.Info("using redis advisory lock", "addr", cfg.Redis.Addr)
	}

	monitor := service.NewMonitor(deps, service.Options{
		Channels:  cfg.YouTube.Channels,
		Monitor:   cfg.Monitor,
		Recipient: cfg.Notify.Recipient,
	}, logger)

	handler := api.NewHandler(api.Dependencies{
		Monitor:     monitor,
		Extractor:   extractor,
		Transformer: summarizer,
		Notifier:    notifier,
		Subscribers: subscriberStore,
		Artifacts:   artifactStore,
	}, api.Options{
		Recipient:      cfg.Notify.Recipient,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, logger)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewRouter(handler),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("starting channel digester",
		"mode", cfg.YouTube.Mode,
		"channels", len(cfg.YouTube.Channels),
		"interval", cfg.Monitor.Interval,
		"notify_provider", cfg.Notify.Provider,
	)
	handle := monitor.StartPolling(ctx, cfg.Monitor.Interval)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-handle.Done():
		runErr = handle.Err()
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	handle.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	logger.Info("channel digester stopped")
	return runErr
}

func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Source, error) {
	if cfg.YouTube.Mode == "feed" {
		return youtube.NewFeedSource(youtube.FeedConfig{
			FeedURL:    cfg.YouTube.FeedURL,
			Timeout:    cfg.YouTube.Timeout,
			MaxResults: cfg.YouTube.MaxResults,
		}, logger), nil
	}

	source, err := youtube.NewAPISource(ctx, youtube.APIConfig{
		APIKey:     cfg.YouTube.APIKey,
		Timeout:    cfg.YouTube.Timeout,
		MaxResults: cfg.YouTube.MaxResults,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create youtube client: %w", err)
	}
	return source, nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (service.Notifier, error) {
	retry := notify.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}

	switch cfg.Provider {
	case "brevo":
		return notify.NewEmailNotifier(notify.NewBrevoProvider(notify.BrevoConfig{
			APIKey:   cfg.APIKey,
			FromAddr: cfg.FromAddr,
			FromName: cfg.FromName,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Retry:    retry,
		}, logger), logger), nil
	case "loops":
		return notify.NewLoopsNotifier(notify.LoopsConfig{
			APIKey:    cfg.APIKey,
			EventName: cfg.EventName,
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			Retry:     retry,
		}, logger), nil
	case "log":
		return notify.NewEmailNotifier(notify.NewLogProvider(logger), logger), nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
