// Package bot orchestrates the chat logger host: the Telegram listener, the
// maintenance scheduler and the metrics endpoint.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/chatlogger/internal/config"
	"github.com/edgard/chatlogger/internal/filter"
	"github.com/edgard/chatlogger/internal/metrics"
)

// Listener receives chat updates until ctx is cancelled. *bot.Bot from
// go-telegram/bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger      *slog.Logger
	listener    Listener
	scheduler   *Scheduler
	metrics     *metrics.Metrics
	metricsAddr string
}

// NewBot creates a new instance of the bot. An empty metricsAddr disables
// the metrics endpoint.
func NewBot(logger *slog.Logger, listener Listener, scheduler *Scheduler, m *metrics.Metrics, metricsAddr string) *Bot {
	return &Bot{
		logger:      logger.With("component", "bot_orchestrator"),
		listener:    listener,
		scheduler:   scheduler,
		metrics:     m,
		metricsAddr: metricsAddr,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of them
// fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(gCtx); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gCtx, b.metricsAddr, b.metrics, b.logger)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

// PolicyFromConfig builds the filter policy described by cfg.
func PolicyFromConfig(cfg config.FilterConfig) *filter.Policy {
	return filter.NewPolicy(cfg.GroupWhitelist, cfg.GroupBlacklist,
		filter.WithBotMessages(cfg.IncludeBotMessages),
		filter.WithSkipEmpty(cfg.SkipEmptyMessages),
	)
}
