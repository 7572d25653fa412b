// Package normalize turns host chat events into the canonical message shape
// consumed by the filter and the persistence gateway.
package normalize

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/edgard/chatlogger/internal/event"
)

// BotUserID is recorded as the sender of bot responses when the adapter does
// not know its own account id.
const BotUserID = "bot"

// Message is the canonical representation of one chat event.
// An empty Nickname means the display name could not be resolved.
type Message struct {
	GroupID      string
	UserID       string
	Nickname     string
	Text         string
	IsBotMessage bool
	OccurredAt   time.Time
}

// TextExtractor pulls message text from event content. It returns false when
// the content shape is not its concern or yields nothing.
type TextExtractor func(event.Content) (string, bool)

// NicknameResolver pulls a display name from an event.
type NicknameResolver func(event.Event) (string, bool)

// DefaultTextExtractors is the text fallback chain, tried in order.
var DefaultTextExtractors = []TextExtractor{
	SegmentText,
	FlatText,
	OpaqueText,
}

// DefaultNicknameResolvers is the nickname fallback chain, tried in order.
var DefaultNicknameResolvers = []NicknameResolver{
	SenderName,
	SenderNickname,
	SenderCard,
}

// Normalizer converts events using ordered extractor chains.
type Normalizer struct {
	texts     []TextExtractor
	nicknames []NicknameResolver
	now       func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithTextExtractors replaces the text fallback chain.
func WithTextExtractors(extractors ...TextExtractor) Option {
	return func(n *Normalizer) { n.texts = extractors }
}

// WithNicknameResolvers replaces the nickname fallback chain.
func WithNicknameResolvers(resolvers ...NicknameResolver) Option {
	return func(n *Normalizer) { n.nicknames = resolvers }
}

// New returns a Normalizer using the default chains.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		texts:     DefaultTextExtractors,
		nicknames: DefaultNicknameResolvers,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts a user message event. It never fails: content that
// yields no text produces an empty Text.
func (n *Normalizer) Normalize(ev event.Event) Message {
	return Message{
		GroupID:    ev.GroupID,
		UserID:     ev.SenderID,
		Nickname:   n.nickname(ev),
		Text:       n.text(ev.Content),
		OccurredAt: n.timestamp(ev),
	}
}

// NormalizeResponse converts a bot response. prefix and body are joined,
// prefix first, and replace the event's content.
func (n *Normalizer) NormalizeResponse(ev event.Event, prefix, body string) Message {
	ev.Content = event.FlatText(prefix + body)

	userID := ev.BotAccountID
	if userID == "" {
		userID = BotUserID
	}

	msg := n.Normalize(ev)
	msg.UserID = userID
	msg.IsBotMessage = true
	return msg
}

func (n *Normalizer) text(c event.Content) string {
	if c == nil {
		return ""
	}
	for _, extract := range n.texts {
		if text, ok := extract(c); ok && text != "" {
			return text
		}
	}
	return ""
}

func (n *Normalizer) nickname(ev event.Event) string {
	for _, resolve := range n.nicknames {
		if name, ok := resolve(ev); ok && name != "" {
			return name
		}
	}
	return ""
}

func (n *Normalizer) timestamp(ev event.Event) time.Time {
	if !ev.OccurredAt.IsZero() {
		return ev.OccurredAt
	}
	return n.now()
}

// SegmentText concatenates the text fragments of a segment list in order.
func SegmentText(c event.Content) (string, bool) {
	segments, ok := c.(event.Segments)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, s := range segments {
		if fragment, ok := s.Fragment(); ok {
			b.WriteString(fragment)
		}
	}
	return b.String(), b.Len() > 0
}

// FlatText returns flattened content as is.
func FlatText(c event.Content) (string, bool) {
	text, ok := c.(event.FlatText)
	if !ok {
		return "", false
	}
	return string(text), text != ""
}

// OpaqueText is the last resort: a generic string conversion of the payload.
func OpaqueText(c event.Content) (string, bool) {
	opaque, ok := c.(event.Opaque)
	if !ok || opaque.Value == nil {
		return "", false
	}

	var text string
	switch v := opaque.Value.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		if isNil(v) {
			return "", false
		}
		// fmt recovers from panicking String methods.
		text = fmt.Sprint(v)
	}
	return text, text != ""
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// SenderName resolves the explicit display name set on the event.
func SenderName(ev event.Event) (string, bool) {
	return ev.SenderName, ev.SenderName != ""
}

// SenderNickname resolves the nested sender nickname.
func SenderNickname(ev event.Event) (string, bool) {
	if ev.Sender == nil {
		return "", false
	}
	return ev.Sender.Nickname, ev.Sender.Nickname != ""
}

// SenderCard resolves the sender's card (group alias).
func SenderCard(ev event.Event) (string, bool) {
	if ev.Sender == nil {
		return "", false
	}
	return ev.Sender.Card, ev.Sender.Card != ""
}
