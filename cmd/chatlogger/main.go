// Package main contains the entrypoint for the Telegram chat logger.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/chatlogger/internal/bot"
	"github.com/edgard/chatlogger/internal/bot/handlers"
	"github.com/edgard/chatlogger/internal/bot/tasks"
	"github.com/edgard/chatlogger/internal/config"
	"github.com/edgard/chatlogger/internal/database"
	"github.com/edgard/chatlogger/internal/gemini"
	"github.com/edgard/chatlogger/internal/logger"
	"github.com/edgard/chatlogger/internal/metrics"
	"github.com/edgard/chatlogger/internal/pipeline"
	"github.com/edgard/chatlogger/internal/telegram"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logging, storage, the chat log pipeline and the Telegram
// bot, blocks until shutdown and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	m := metrics.New()
	gateway := database.NewGateway(database.Config{
		URL:  cfg.Database.URL,
		Name: cfg.Database.Name,
		Pool: database.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		},
	}, database.WithLogger(log), database.WithMetrics(m))

	controller := pipeline.New(pipeline.Deps{
		Gateway:      gateway,
		Policy:       bot.PolicyFromConfig(cfg.Filter),
		Logger:       log,
		Metrics:      m,
		DatabaseName: cfg.Database.Name,
	})
	if err := controller.Start(ctx); err != nil {
		return 1
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		controller.Stop(stopCtx)
	}()

	loader.Watch(log, func(next *config.Config) {
		controller.SetPolicy(bot.PolicyFromConfig(next.Filter))
	})

	var gemClient gemini.Client
	if cfg.Gemini.APIKey != "" {
		gemClient, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
	} else {
		log.Info("Gemini API key not set, mention replies use the fallback message")
	}

	// hDeps.BotInfo is set once the bot identity is known. The middleware and
	// default handler hold &hDeps, and updates are only dispatched after Run
	// starts the listener.
	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Recorder:     controller,
		GeminiClient: gemClient,
		Limiter:      handlers.NewChatLimiter(cfg.Gemini.ReplyRate, cfg.Gemini.ReplyBurst),
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.Observe(&hDeps)),
		tgbot.WithDefaultHandler(handlers.NewMentionHandler(&hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	hDeps.BotInfo = telegram.NewBotInfo(me)
	log.Info("Retrieved bot info", "bot_id", hDeps.BotInfo.ID, "bot_username", hDeps.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Maintainer: gateway})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, tg, sched, m, cfg.Metrics.ListenAddr)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
