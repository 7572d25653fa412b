package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatlogger/internal/telegram"
)

const sendMessageTimeout = 10 * time.Second

// SendAndRecordReply sends body to chat, prefixed with the configured
// response prefix, and hands the sent reply to the recorder. A reply that
// fails to send is not recorded. replyTo of 0 sends a plain message.
func SendAndRecordReply(ctx context.Context, b MessageSender, deps HandlerDeps, chat models.Chat, replyTo int, body string) {
	log := deps.Logger.With("chat_id", chat.ID)
	prefix := deps.Config.Telegram.ResponsePrefix

	params := &bot.SendMessageParams{ChatID: chat.ID, Text: prefix + body}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	sent, err := b.SendMessage(sendCtx, params)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply message", "error", err)
		return
	}
	if sent != nil {
		log.DebugContext(ctx, "Sent reply", "message_id", sent.ID)
	}

	ev := telegram.ResponseEvent(chat, deps.BotInfo, deps.Config.Telegram.BotNickname)
	deps.Recorder.OnBotResponse(ctx, ev, prefix, body)
}
