package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatlogger/internal/gemini"
	"github.com/edgard/chatlogger/internal/telegram"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	typingInterval      = 4 * time.Second
)

type mentionHandler struct {
	deps *HandlerDeps
}

// NewMentionHandler creates a handler that replies to messages mentioning
// the bot or replying to it. Replies come from Gemini when configured and
// from the fallback message otherwise. deps is read on each update.
func NewMentionHandler(deps *HandlerDeps) bot.HandlerFunc {
	return mentionHandler{deps}.Handle
}

func (h mentionHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h mentionHandler) handle(ctx context.Context, b MessageSender, update *models.Update) {
	log := h.deps.Logger.With("handler", "mention")

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.shouldHandle(msg) {
		return
	}

	chat := msg.Chat
	log.DebugContext(ctx, "Handling mention", "chat_id", chat.ID, "message_id", msg.ID)

	if h.deps.GeminiClient == nil {
		SendAndRecordReply(ctx, b, *h.deps, chat, msg.ID, h.deps.Config.Telegram.Messages.MentionFallback)
		return
	}

	if !h.deps.Limiter.Allow(chat.ID) {
		log.InfoContext(ctx, "Reply rate limit reached, ignoring mention", "chat_id", chat.ID)
		return
	}

	reply := h.generate(ctx, b, msg)
	SendAndRecordReply(ctx, b, *h.deps, chat, msg.ID, reply)
}

func (h mentionHandler) generate(ctx context.Context, b MessageSender, msg *models.Message) string {
	log := h.deps.Logger.With("handler", "mention")

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()
	go telegram.KeepTyping(aiCtx, b, msg.Chat.ID, typingInterval, log)

	sender := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	reply, err := h.deps.GeminiClient.GenerateReply(aiCtx, gemini.ReplyRequest{
		Text:         messageText(msg),
		SenderName:   sender,
		BotUsername:  h.deps.BotInfo.Username,
		BotFirstName: h.deps.BotInfo.FirstName,
	})
	if err != nil {
		log.ErrorContext(ctx, "AI generation failed", "error", err, "chat_id", msg.Chat.ID)
		return h.deps.Config.Telegram.Messages.MentionFallback
	}
	return reply
}

func (h mentionHandler) shouldHandle(msg *models.Message) bool {
	username := strings.ToLower(h.deps.BotInfo.Username)
	if username == "" {
		return false
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		h.deps.BotInfo.ID != "" && formatID(msg.ReplyToMessage.From.ID) == h.deps.BotInfo.ID {
		return true
	}

	mention := "@" + username
	if mentionsEntity(msg.Text, msg.Entities, mention) || mentionsEntity(msg.Caption, msg.CaptionEntities, mention) {
		return true
	}

	for _, w := range strings.Fields(strings.ToLower(messageText(msg))) {
		if strings.TrimFunc(w, unicode.IsPunct) == username {
			return true
		}
	}
	return false
}

// mentionsEntity reports whether a mention entity in text names the bot.
// Entity offsets count UTF-16 code units.
func mentionsEntity(text string, entities []models.MessageEntity, mention string) bool {
	if text == "" || len(entities) == 0 {
		return false
	}
	units := utf16.Encode([]rune(text))
	for _, e := range entities {
		if e.Type != models.MessageEntityTypeMention || e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
			continue
		}
		if strings.ToLower(string(utf16.Decode(units[e.Offset:e.Offset+e.Length]))) == mention {
			return true
		}
	}
	return false
}

func messageText(msg *models.Message) string {
	switch {
	case msg.Text != "" && msg.Caption != "":
		return msg.Text + " " + msg.Caption
	case msg.Text != "":
		return msg.Text
	default:
		return msg.Caption
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
