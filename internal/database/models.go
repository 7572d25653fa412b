package database

import (
	"database/sql"
	"time"
)

// ChatRecord is one persisted chat message, from a user or from the bot.
// GroupID is never empty for a stored record.
type ChatRecord struct {
	ID           int64          `db:"id"`
	UserID       string         `db:"user_id"`
	Nickname     sql.NullString `db:"nickname"`
	Message      string         `db:"message"`
	Timestamp    time.Time      `db:"timestamp"`
	GroupID      string         `db:"group_id"`
	IsBotMessage bool           `db:"is_bot_message"`
}

// NullableNickname maps an empty nickname to SQL NULL.
func NullableNickname(nickname string) sql.NullString {
	return sql.NullString{String: nickname, Valid: nickname != ""}
}
