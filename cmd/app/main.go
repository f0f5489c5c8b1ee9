// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/application"
	"telegram-channel-publisher/internal/config"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	aiAdapters "telegram-channel-publisher/internal/infra/adapters/ai"
	tele "telegram-channel-publisher/internal/infra/adapters/telegram"
	"telegram-channel-publisher/internal/infra/api"
	pg "telegram-channel-publisher/internal/infra/db/postgres"
	"telegram-channel-publisher/internal/infra/i18n"
	"telegram-channel-publisher/internal/infra/logging"
	"telegram-channel-publisher/internal/infra/metrics"
	red "telegram-channel-publisher/internal/infra/redis"
	"telegram-channel-publisher/internal/infra/scheduler"
	"telegram-channel-publisher/internal/infra/worker"
	"telegram-channel-publisher/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// channelBot is what both the real and the no-op Telegram adapters provide.
type channelBot interface {
	adapter.TelegramBotAdapter
	adapter.ChannelSender
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no-op bot without a token)")
	mintFor := flag.String("mint-admin-token", "", "print an admin API token for the given subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	auth := api.NewAuthManager(cfg.Admin.JWTSecret, 30*24*time.Hour)
	if *mintFor != "" {
		tok, err := auth.Mint(*mintFor)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint admin token")
		}
		fmt.Println(tok)
		return
	}

	if err := run(ctx, cfg, auth, logger); err != nil {
		logger.Fatal().Err(err).Msg("publisher stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, auth *api.AuthManager, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Bool("dev", cfg.Runtime.Dev).
		Str("channel", cfg.Channel.ID).
		Str("database", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).
		Str("bot_mode", cfg.Bot.Mode).
		Msg("starting channel publisher")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
	postRepo := pg.NewPostRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	sessionRepo := red.NewSessionRepo(redisClient, cfg.Redis.SessionTTL)
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- i18n ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Telegram ----
	var (
		bot     channelBot
		realBot *tele.RealTelegramBotAdapter
	)
	if cfg.Bot.Token == "" {
		logger.Warn().Msg("no bot token in dev mode; using no-op telegram adapter")
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, cfg.Channel.ID, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = realBot
	}

	// ---- AI ----
	ai := aiAdapters.NewFromConfig(ctx, cfg.AI, logger)
	counter := aiAdapters.NewTokenCounter(logger)

	// ---- Scheduler ----
	jobPool := worker.NewPool(cfg.Scheduler.Workers, logger)
	jobPool.Start(ctx)
	defer jobPool.Stop()

	// The scheduler fires into the publish use case, which in turn schedules
	// through the scheduler; the closure breaks the construction cycle.
	var publishUC usecase.PublishUseCase
	sched := scheduler.NewScheduler(cfg.Scheduler.Tick, jobPool, func(ctx context.Context, job model.ScheduledJob) error {
		return publishUC.PublishScheduled(ctx, job)
	}, logger)

	// ---- Use cases ----
	publishUC = usecase.NewPublishUseCase(postRepo, bot, sched, locker, usecase.PublishConfig{
		Signature: cfg.Channel.Signature,
		ParseMode: cfg.Channel.ParseMode,
	}, logger)
	rewriteUC := usecase.NewRewriteUseCase(ai, counter, cfg.AI.MaxInputTokens, cfg.AI.Timeout, logger)
	convUC := usecase.NewConversationUseCase(sessionRepo, publishUC, rewriteUC, tr, usecase.ConversationConfig{
		Style:    cfg.AI.StylePrompt,
		Location: loc,
		Admins:   cfg.Bot.AdminIDs,
	}, logger)

	pending, err := postRepo.ListScheduled(ctx, nil)
	if err != nil {
		return fmt.Errorf("restore scheduled posts: %w", err)
	}
	logger.Info().Int("restored", sched.Restore(pending)).Msg("scheduled posts restored")
	sched.Start(ctx)
	defer sched.Stop()

	// ---- Facade ----
	facade := application.NewBotFacade(convUC, bot, locker, rateLimiter, tr, application.FacadeConfig{
		RateLimit: cfg.Bot.RateLimit,
		LockTTL:   cfg.Redis.LockTTL,
	}, logger)

	// ---- HTTP ----
	checks := map[string]api.HealthCheck{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    redisClient.Ping,
	}
	var webhook http.Handler
	if realBot != nil && strings.EqualFold(cfg.Bot.Mode, "webhook") {
		webhook = realBot
	}
	server := api.NewServer(publishUC, auth, webhook, checks, logger)
	errc := make(chan error, 2)
	go func() { errc <- server.Start(cfg.HTTP.Port) }()

	if realBot != nil {
		realBot.SetHandler(facade)
		go func() { errc <- realBot.Start(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case runErr = <-errc:
		if runErr != nil {
			logger.Error().Err(runErr).Msg("component failed; shutting down")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if realBot != nil {
		realBot.StopPolling()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return runErr
}
