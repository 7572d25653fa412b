package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h startHandler) handle(ctx context.Context, b MessageSender, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)

	welcome := withBotName(h.deps.Config.Telegram.Messages.Welcome, h.deps.BotInfo.Username)
	SendAndRecordReply(ctx, b, h.deps, update.Message.Chat, 0, welcome)
}

// withBotName replaces the @botname placeholder with the bot's username.
func withBotName(text, username string) string {
	if username == "" {
		return text
	}
	return strings.ReplaceAll(text, "@botname", "@"+username)
}
