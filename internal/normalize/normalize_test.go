package normalize_test

import (
	"testing"
	"time"

	"github.com/edgard/chatlogger/internal/event"
	"github.com/edgard/chatlogger/internal/normalize"
)

type stringer struct{ s string }

func (s stringer) String() string { return s.s }

type panicky struct{}

func (*panicky) String() string { panic("boom") }

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content event.Content
		want    string
	}{
		{
			name: "segments concatenate in order",
			content: event.Segments{
				{Type: event.SegmentPlain, Text: "hello "},
				{Type: event.SegmentMention, Text: "@alice"},
				{Type: event.SegmentImage, Text: "ignored.png"},
				{Type: event.SegmentEmoji, Text: " :)"},
			},
			want: "hello @alice :)",
		},
		{
			name:    "media only segments yield empty",
			content: event.Segments{{Type: event.SegmentImage}, {Type: event.SegmentVoice}},
			want:    "",
		},
		{name: "empty segment list", content: event.Segments{}, want: ""},
		{name: "nil segment list", content: event.Segments(nil), want: ""},
		{name: "flat text", content: event.FlatText("plain message"), want: "plain message"},
		{name: "empty flat text", content: event.FlatText(""), want: ""},
		{name: "opaque string", content: event.Opaque{Value: "raw"}, want: "raw"},
		{name: "opaque bytes", content: event.Opaque{Value: []byte("bytes")}, want: "bytes"},
		{name: "opaque stringer", content: event.Opaque{Value: stringer{"[location]"}}, want: "[location]"},
		{name: "opaque number", content: event.Opaque{Value: 42}, want: "42"},
		{name: "opaque nil", content: event.Opaque{}, want: ""},
		{name: "opaque typed nil pointer", content: event.Opaque{Value: (*panicky)(nil)}, want: ""},
		{name: "nil content", content: nil, want: ""},
	}

	n := normalize.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := n.Normalize(event.Event{GroupID: "g1", SenderID: "u1", Content: tt.content})
			if msg.Text != tt.want {
				t.Errorf("Text = %q, want %q", msg.Text, tt.want)
			}
			if msg.GroupID != "g1" || msg.UserID != "u1" {
				t.Errorf("ids = (%q, %q), want (g1, u1)", msg.GroupID, msg.UserID)
			}
			if msg.IsBotMessage {
				t.Error("user message marked as bot message")
			}
		})
	}
}

func TestNormalizeNickname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   event.Event
		want string
	}{
		{
			name: "explicit display name wins over sender fields",
			ev: event.Event{
				SenderName: "Display",
				Sender:     &event.Sender{Nickname: "Nick", Card: "Card"},
			},
			want: "Display",
		},
		{
			name: "nested nickname when no display name",
			ev:   event.Event{Sender: &event.Sender{Nickname: "Nick", Card: "Card"}},
			want: "Nick",
		},
		{
			name: "card as last source",
			ev:   event.Event{Sender: &event.Sender{Card: "Card"}},
			want: "Card",
		},
		{name: "nil sender", ev: event.Event{}, want: ""},
		{name: "empty sender", ev: event.Event{Sender: &event.Sender{}}, want: ""},
	}

	n := normalize.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Normalize(tt.ev).Nickname; got != tt.want {
				t.Errorf("Nickname = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n := normalize.New(normalize.WithClock(func() time.Time { return fixed }))

	if got := n.Normalize(event.Event{}).OccurredAt; !got.Equal(fixed) {
		t.Errorf("default OccurredAt = %v, want %v", got, fixed)
	}

	own := fixed.Add(-time.Hour)
	if got := n.Normalize(event.Event{OccurredAt: own}).OccurredAt; !got.Equal(own) {
		t.Errorf("OccurredAt = %v, want event time %v", got, own)
	}
}

func TestDefaultClockIsUTC(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := normalize.New().Normalize(event.Event{}).OccurredAt
	if got.Location() != time.UTC {
		t.Errorf("default OccurredAt location = %v, want UTC", got.Location())
	}
	if got.Before(before.Add(-time.Second)) || got.After(time.Now().Add(time.Second)) {
		t.Errorf("default OccurredAt = %v, not close to now", got)
	}
}

func TestNormalizeResponse(t *testing.T) {
	t.Parallel()

	n := normalize.New()

	t.Run("prefix then body", func(t *testing.T) {
		t.Parallel()
		msg := n.NormalizeResponse(event.Event{GroupID: "g1", BotAccountID: "12345"}, "Re: ", "done")
		if msg.Text != "Re: done" {
			t.Errorf("Text = %q, want %q", msg.Text, "Re: done")
		}
		if !msg.IsBotMessage {
			t.Error("bot response not marked as bot message")
		}
		if msg.UserID != "12345" {
			t.Errorf("UserID = %q, want bot account id", msg.UserID)
		}
	})

	t.Run("sentinel user without bot account", func(t *testing.T) {
		t.Parallel()
		msg := n.NormalizeResponse(event.Event{GroupID: "g1", SenderID: "someone"}, "", "hi")
		if msg.UserID != normalize.BotUserID {
			t.Errorf("UserID = %q, want %q", msg.UserID, normalize.BotUserID)
		}
	})

	t.Run("response replaces original content", func(t *testing.T) {
		t.Parallel()
		ev := event.Event{GroupID: "g1", Content: event.FlatText("question")}
		if msg := n.NormalizeResponse(ev, "", ""); msg.Text != "" {
			t.Errorf("Text = %q, want empty", msg.Text)
		}
	})
}

func TestCustomChains(t *testing.T) {
	t.Parallel()

	calls := 0
	first := func(event.Content) (string, bool) { calls++; return "first", true }
	second := func(event.Content) (string, bool) { calls++; return "second", true }

	n := normalize.New(normalize.WithTextExtractors(first, second))
	if got := n.Normalize(event.Event{Content: event.FlatText("x")}).Text; got != "first" {
		t.Errorf("Text = %q, want first", got)
	}
	if calls != 1 {
		t.Errorf("extractors called %d times, want 1", calls)
	}
}
