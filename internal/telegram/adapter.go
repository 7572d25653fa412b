package telegram

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatlogger/internal/event"
)

// BotInfo identifies the bot account, resolved once at startup with GetMe.
type BotInfo struct {
	ID        string
	Username  string
	FirstName string
}

// NewBotInfo converts the GetMe result.
func NewBotInfo(u *models.User) BotInfo {
	if u == nil {
		return BotInfo{}
	}
	return BotInfo{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.Username,
		FirstName: u.FirstName,
	}
}

// GroupID returns the chat id for group and supergroup chats and "" for
// private chats and channels, which are never logged.
func GroupID(chat models.Chat) string {
	switch chat.Type {
	case models.ChatTypeGroup, models.ChatTypeSupergroup:
		return strconv.FormatInt(chat.ID, 10)
	default:
		return ""
	}
}

// MessageEvent maps an incoming Telegram message to a chat event.
func MessageEvent(msg *models.Message, bot BotInfo) event.Event {
	if msg == nil {
		return event.Event{BotAccountID: bot.ID}
	}

	ev := event.Event{
		GroupID:      GroupID(msg.Chat),
		SenderName:   msg.AuthorSignature,
		BotAccountID: bot.ID,
		Content:      MessageContent(msg),
	}
	if msg.Date > 0 {
		ev.OccurredAt = time.Unix(int64(msg.Date), 0).UTC()
	}

	switch {
	case msg.From != nil:
		ev.SenderID = strconv.FormatInt(msg.From.ID, 10)
		ev.Sender = &event.Sender{
			Nickname: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
			Card:     msg.From.Username,
		}
	case msg.SenderChat != nil:
		ev.SenderID = strconv.FormatInt(msg.SenderChat.ID, 10)
		ev.Sender = &event.Sender{Nickname: msg.SenderChat.Title, Card: msg.SenderChat.Username}
	}
	return ev
}

// ResponseEvent describes a reply the bot is sending to chat. displayName is
// recorded as the sender name when set.
func ResponseEvent(chat models.Chat, bot BotInfo, displayName string) event.Event {
	if displayName == "" {
		displayName = bot.FirstName
	}
	return event.Event{
		GroupID:      GroupID(chat),
		SenderID:     bot.ID,
		SenderName:   displayName,
		BotAccountID: bot.ID,
		OccurredAt:   time.Now().UTC(),
	}
}

// MessageContent picks the richest content shape a message supports: plain
// text without entities is flat text, text with entities or media becomes
// segments, anything else is an opaque marker of the message kind.
func MessageContent(msg *models.Message) event.Content {
	if msg.Text != "" && len(msg.Entities) == 0 {
		return event.FlatText(msg.Text)
	}

	var segs event.Segments
	if msg.Text != "" {
		segs = append(segs, textSegments(msg.Text, msg.Entities)...)
	}
	if len(msg.Photo) > 0 {
		segs = append(segs, event.Segment{Type: event.SegmentImage})
	}
	if msg.Voice != nil {
		segs = append(segs, event.Segment{Type: event.SegmentVoice})
	}
	if msg.Document != nil {
		segs = append(segs, event.Segment{Type: event.SegmentFile, Text: msg.Document.FileName})
	}
	if msg.Sticker != nil {
		segs = append(segs, event.Segment{Type: event.SegmentEmoji, Text: msg.Sticker.Emoji})
	}
	if msg.Caption != "" {
		segs = append(segs, textSegments(msg.Caption, msg.CaptionEntities)...)
	}
	if len(segs) > 0 {
		return segs
	}

	return event.Opaque{Value: opaqueKind(msg)}
}

func opaqueKind(msg *models.Message) string {
	switch {
	case msg.Location != nil:
		return "[location]"
	case msg.Contact != nil:
		return "[contact]"
	case msg.Poll != nil:
		return "[poll] " + msg.Poll.Question
	case msg.Video != nil:
		return "[video]"
	case msg.Audio != nil:
		return "[audio]"
	case msg.Animation != nil:
		return "[animation]"
	default:
		return ""
	}
}

// textSegments splits text at entity boundaries. Entity offsets count UTF-16
// code units. Nested or out-of-range entities are folded into plain text.
func textSegments(text string, entities []models.MessageEntity) event.Segments {
	units := utf16.Encode([]rune(text))
	var segs event.Segments
	cursor := 0

	emit := func(t event.SegmentType, from, to int) {
		if from >= to {
			return
		}
		segs = append(segs, event.Segment{Type: t, Text: string(utf16.Decode(units[from:to]))})
	}

	for _, e := range entities {
		t, ok := entitySegmentType(e.Type)
		if !ok {
			continue
		}
		start, end := e.Offset, e.Offset+e.Length
		if start < cursor || e.Length <= 0 || end > len(units) {
			continue
		}
		emit(event.SegmentPlain, cursor, start)
		emit(t, start, end)
		cursor = end
	}
	emit(event.SegmentPlain, cursor, len(units))
	return segs
}

func entitySegmentType(t models.MessageEntityType) (event.SegmentType, bool) {
	switch t {
	case models.MessageEntityTypeMention, models.MessageEntityTypeTextMention:
		return event.SegmentMention, true
	case models.MessageEntityTypeURL, models.MessageEntityTypeTextLink:
		return event.SegmentLink, true
	case models.MessageEntityTypeCustomEmoji:
		return event.SegmentEmoji, true
	default:
		return "", false
	}
}
