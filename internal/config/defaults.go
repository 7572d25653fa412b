package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	// Database defaults
	DefaultDatabaseURL     = "sqlite:///./chat_logs.db"
	DefaultDatabaseName    = "langbot_chat"
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = time.Hour

	// Filter defaults
	DefaultIncludeBotMessages = true
	DefaultSkipEmptyMessages  = false

	// Gemini defaults
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 1.0
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 * time.Second
	DefaultGeminiReplyRate   = 10 * time.Second
	DefaultGeminiReplyBurst  = 3

	// Scheduler defaults
	DefaultMaintenanceSchedule = "0 0 4 * * *"
)

// Default bot messages
var DefaultMessages = TelegramMessages{
	Welcome:         "👋 Hi! I'm @botname. Add me to a group and I'll keep a log of the conversation.",
	Help:            "ℹ️ I record group messages for later auditing. Mention @botname to talk to me.",
	MentionFallback: "🤖 I'm only logging right now, replies are not configured.",
}

var defaults = map[string]any{
	"log.level": DefaultLogLevel,
	"log.json":  DefaultLogJSON,

	"database.url":               DefaultDatabaseURL,
	"database.name":              DefaultDatabaseName,
	"database.max_open_conns":    DefaultMaxOpenConns,
	"database.max_idle_conns":    DefaultMaxIdleConns,
	"database.conn_max_lifetime": DefaultConnMaxLifetime,

	"filter.group_whitelist":      []string{},
	"filter.group_blacklist":      []string{},
	"filter.include_bot_messages": DefaultIncludeBotMessages,
	"filter.skip_empty_messages":  DefaultSkipEmptyMessages,

	"telegram.token":                     "",
	"telegram.response_prefix":           "",
	"telegram.bot_nickname":              "",
	"telegram.messages.welcome":          DefaultMessages.Welcome,
	"telegram.messages.help":             DefaultMessages.Help,
	"telegram.messages.mention_fallback": DefaultMessages.MentionFallback,

	"gemini.api_key":            "",
	"gemini.model":              DefaultGeminiModel,
	"gemini.temperature":        DefaultGeminiTemperature,
	"gemini.system_instruction": "",
	"gemini.max_retries":        DefaultGeminiMaxRetries,
	"gemini.retry_delay":        DefaultGeminiRetryDelay,
	"gemini.reply_rate":         DefaultGeminiReplyRate,
	"gemini.reply_burst":        DefaultGeminiReplyBurst,

	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": DefaultMaintenanceSchedule,

	"metrics.listen_addr": "",
}
