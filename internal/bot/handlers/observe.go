package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatlogger/internal/telegram"
)

// Observe records every incoming message before the matched handler runs, so
// a user's message is always logged ahead of the bot's reply to it. Private
// chats and channels map to events without a group and are dropped by the
// pipeline. deps is read on each update, so fields set after registration
// (BotInfo) are seen.
func Observe(deps *HandlerDeps) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update != nil && update.Message != nil {
				deps.Recorder.OnGroupMessage(ctx, telegram.MessageEvent(update.Message, deps.BotInfo))
			}
			next(ctx, b, update)
		}
	}
}
