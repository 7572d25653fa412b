// Package event describes the chat events a host hands to the logging pipeline.
// Content comes in a closed set of shapes so consumers can dispatch on the
// shape instead of probing values at runtime.
package event

import "time"

// Kind identifies which content shape an event carries.
type Kind int

// Content shapes.
const (
	KindSegments Kind = iota + 1
	KindFlatText
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindSegments:
		return "segments"
	case KindFlatText:
		return "flat_text"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Content is the message body of an event. The set of implementations is
// closed: Segments, FlatText and Opaque.
type Content interface {
	Kind() Kind
	content()
}

// SegmentType classifies a single message segment.
type SegmentType string

// Segment types.
const (
	SegmentPlain   SegmentType = "plain"
	SegmentMention SegmentType = "mention"
	SegmentEmoji   SegmentType = "emoji"
	SegmentLink    SegmentType = "link"
	SegmentImage   SegmentType = "image"
	SegmentVoice   SegmentType = "voice"
	SegmentFile    SegmentType = "file"
	SegmentUnknown SegmentType = "unknown"
)

// Segment is one element of a structured message.
type Segment struct {
	Type SegmentType
	Text string
}

// Fragment returns the text this segment contributes to the flattened message.
// Media segments expose none.
func (s Segment) Fragment() (string, bool) {
	switch s.Type {
	case SegmentPlain, SegmentMention, SegmentEmoji, SegmentLink:
		return s.Text, s.Text != ""
	default:
		return "", false
	}
}

// Segments is an ordered list of message segments.
type Segments []Segment

func (Segments) Kind() Kind { return KindSegments }
func (Segments) content()   {}

// FlatText is a message already flattened to a single string.
type FlatText string

func (FlatText) Kind() Kind { return KindFlatText }
func (FlatText) content()   {}

// Opaque wraps a payload with no known structure.
type Opaque struct {
	Value any
}

func (Opaque) Kind() Kind { return KindOpaque }
func (Opaque) content()   {}

// Sender holds the nested sender details some platforms attach to an event.
type Sender struct {
	Nickname string
	Card     string
}

// Event is a single observed chat message.
type Event struct {
	GroupID  string
	SenderID string

	// SenderName is an explicit display name set by the platform, when any.
	SenderName string
	Sender     *Sender

	// BotAccountID is the adapter's own account id, used for bot responses.
	BotAccountID string

	Content    Content
	OccurredAt time.Time
}
