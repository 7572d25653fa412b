// Package config provides configuration loading, validation, and hot reload
// for chatlogger. Values come from defaults, an optional YAML file and
// CHATLOGGER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every configuration loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig identifies the storage backend. Name is a label used only
// in log output.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required"`
	Name            string        `mapstructure:"name"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// FilterConfig selects which groups and message kinds are recorded.
type FilterConfig struct {
	GroupWhitelist     []string `mapstructure:"group_whitelist"`
	GroupBlacklist     []string `mapstructure:"group_blacklist"`
	IncludeBotMessages bool     `mapstructure:"include_bot_messages"`
	SkipEmptyMessages  bool     `mapstructure:"skip_empty_messages"`
}

// TelegramConfig configures the Telegram host.
type TelegramConfig struct {
	Token          string           `mapstructure:"token"`
	ResponsePrefix string           `mapstructure:"response_prefix"`
	BotNickname    string           `mapstructure:"bot_nickname"`
	Messages       TelegramMessages `mapstructure:"messages"`
}

// TelegramMessages holds the bot's canned replies. "@botname" is replaced
// with the bot's username.
type TelegramMessages struct {
	Welcome         string `mapstructure:"welcome"          validate:"required"`
	Help            string `mapstructure:"help"             validate:"required"`
	MentionFallback string `mapstructure:"mention_fallback" validate:"required"`
}

// GeminiConfig configures mention replies. Replies are disabled when APIKey
// is empty.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"              validate:"required"`
	Temperature       float32       `mapstructure:"temperature"        validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	MaxRetries        int           `mapstructure:"max_retries"        validate:"gte=0,lte=10"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"        validate:"gte=0"`
	ReplyRate         time.Duration `mapstructure:"reply_rate"         validate:"gte=0"`
	ReplyBurst        int           `mapstructure:"reply_burst"        validate:"gte=1"`
}

// SchedulerConfig lists scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task on a cron schedule (seconds field optional).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MetricsConfig configures the Prometheus endpoint. An empty ListenAddr
// disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"omitempty,hostname_port"`
}
