// Package filter decides which groups have their messages persisted.
package filter

import (
	"slices"
	"strings"
)

// Set is a set of group identifiers.
type Set map[string]struct{}

// NewSet builds a Set from configuration entries, trimming surrounding
// whitespace and skipping blanks.
func NewSet(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member of the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// ShouldLog applies the group filter. A non-empty whitelist decides alone:
// a group is accepted iff it is whitelisted, even when it is also
// blacklisted. With an empty whitelist, blacklisted groups are rejected and
// everything else is accepted.
func ShouldLog(groupID string, whitelist, blacklist Set) bool {
	if len(whitelist) > 0 {
		return whitelist.Has(groupID)
	}
	return !blacklist.Has(groupID)
}

// Policy is an immutable snapshot of the filter configuration.
type Policy struct {
	whitelist          Set
	blacklist          Set
	includeBotMessages bool
	skipEmptyMessages  bool
}

// Option configures a Policy.
type Option func(*Policy)

// WithBotMessages sets whether bot responses are recorded.
func WithBotMessages(include bool) Option {
	return func(p *Policy) { p.includeBotMessages = include }
}

// WithSkipEmpty sets whether messages with blank text are dropped.
func WithSkipEmpty(skip bool) Option {
	return func(p *Policy) { p.skipEmptyMessages = skip }
}

// NewPolicy builds a Policy. Bot messages are included unless disabled.
func NewPolicy(whitelist, blacklist []string, opts ...Option) *Policy {
	p := &Policy{
		whitelist:          NewSet(whitelist),
		blacklist:          NewSet(blacklist),
		includeBotMessages: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allows reports whether messages from groupID should be persisted.
func (p *Policy) Allows(groupID string) bool {
	return ShouldLog(groupID, p.whitelist, p.blacklist)
}

// IncludeBotMessages reports whether bot responses are recorded.
func (p *Policy) IncludeBotMessages() bool { return p.includeBotMessages }

// SkipEmptyMessages reports whether blank messages are dropped.
func (p *Policy) SkipEmptyMessages() bool { return p.skipEmptyMessages }

// Whitelist returns the whitelisted group ids.
func (p *Policy) Whitelist() []string { return p.whitelist.list() }

// Blacklist returns the blacklisted group ids.
func (p *Policy) Blacklist() []string { return p.blacklist.list() }

func (s Set) list() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
