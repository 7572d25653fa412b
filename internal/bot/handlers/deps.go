// Package handlers contains the Telegram command and message handlers, the
// middleware that feeds every message into the chat log, and their registry.
package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatlogger/internal/config"
	"github.com/edgard/chatlogger/internal/event"
	"github.com/edgard/chatlogger/internal/gemini"
	"github.com/edgard/chatlogger/internal/telegram"
)

// Recorder receives the chat traffic to be logged.
type Recorder interface {
	OnGroupMessage(ctx context.Context, ev event.Event)
	OnBotResponse(ctx context.Context, ev event.Event, prefix, body string)
}

// MessageSender is the subset of *bot.Bot the handlers use to reply.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// HandlerDeps provides dependencies for Telegram handlers. GeminiClient is
// nil when replies are disabled.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Recorder     Recorder
	GeminiClient gemini.Client
	Limiter      *ChatLimiter
	BotInfo      telegram.BotInfo
}
