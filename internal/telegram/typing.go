package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ChatActionSender is the subset of *bot.Bot needed to show a typing indicator.
type ChatActionSender interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// KeepTyping shows the typing indicator in chatID every interval until ctx is done.
func KeepTyping(ctx context.Context, b ChatActionSender, chatID int64, interval time.Duration, log *slog.Logger) {
	send := func() error {
		_, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
		return err
	}

	if err := send(); err != nil {
		log.DebugContext(ctx, "Failed to send initial typing action", "error", err, "chat_id", chatID)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.DebugContext(ctx, "Typing action failed", "error", err, "chat_id", chatID)
			}
		}
	}
}
