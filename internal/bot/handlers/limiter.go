package handlers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterLifetime   = 30 * time.Minute
	limiterMaxEntries = 1024
)

type chatLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ChatLimiter rate limits generated replies per chat. A nil *ChatLimiter
// allows everything.
type ChatLimiter struct {
	mu      sync.Mutex
	entries map[int64]*chatLimiterEntry
	every   rate.Limit
	burst   int
	now     func() time.Time
}

// NewChatLimiter allows burst replies per chat, refilled one per interval.
// It returns nil when interval is not positive.
func NewChatLimiter(interval time.Duration, burst int) *ChatLimiter {
	if interval <= 0 || burst <= 0 {
		return nil
	}
	return &ChatLimiter{
		entries: make(map[int64]*chatLimiterEntry),
		every:   rate.Every(interval),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether chatID may receive another generated reply now.
func (l *ChatLimiter) Allow(chatID int64) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[chatID]
	if !ok {
		entry = &chatLimiterEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.entries[chatID] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	if len(l.entries) > limiterMaxEntries {
		l.cleanup(now)
	}
	return allowed
}

func (l *ChatLimiter) cleanup(now time.Time) {
	expireBefore := now.Add(-limiterLifetime)
	for id, entry := range l.entries {
		if entry.lastSeen.Before(expireBefore) {
			delete(l.entries, id)
		}
	}
}
