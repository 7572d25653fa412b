// Package pipeline wires normalization, group filtering and persistence into
// the host-facing chat logging lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/edgard/chatlogger/internal/database"
	"github.com/edgard/chatlogger/internal/event"
	"github.com/edgard/chatlogger/internal/filter"
	"github.com/edgard/chatlogger/internal/logger"
	"github.com/edgard/chatlogger/internal/metrics"
	"github.com/edgard/chatlogger/internal/normalize"
)

// Gateway is the persistence surface the controller needs.
type Gateway interface {
	Initialize(ctx context.Context) error
	Write(ctx context.Context, rec *database.ChatRecord) error
	Shutdown(ctx context.Context) error
}

// Deps holds the collaborators of a Controller. Normalizer, Logger and
// Metrics are optional.
type Deps struct {
	Gateway      Gateway
	Policy       *filter.Policy
	Normalizer   *normalize.Normalizer
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	DatabaseName string
}

// Controller receives host chat events and persists the ones the filter
// policy admits. Persistence failures never reach the caller.
type Controller struct {
	gateway    Gateway
	normalizer *normalize.Normalizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	dbName     string
	policy     atomic.Pointer[filter.Policy]
}

// New builds a Controller. A nil policy admits every group.
func New(deps Deps) *Controller {
	c := &Controller{
		gateway:    deps.Gateway,
		normalizer: deps.Normalizer,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		dbName:     deps.DatabaseName,
	}
	if c.normalizer == nil {
		c.normalizer = normalize.New()
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	c.logger = c.logger.With("component", "pipeline")

	policy := deps.Policy
	if policy == nil {
		policy = filter.NewPolicy(nil, nil)
	}
	c.policy.Store(policy)
	return c
}

// Policy returns the filter policy currently in effect.
func (c *Controller) Policy() *filter.Policy {
	return c.policy.Load()
}

// SetPolicy swaps the filter policy. Events already past the filter keep the
// policy they were checked against.
func (c *Controller) SetPolicy(p *filter.Policy) {
	if p == nil {
		return
	}
	c.policy.Store(p)
	c.logger.Info("Filter policy updated",
		"whitelist", p.Whitelist(),
		"blacklist", p.Blacklist(),
		"include_bot_messages", p.IncludeBotMessages())
}

// Start initializes storage. The returned error is fatal for the host.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.gateway.Initialize(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Chat logger failed to start", "database", c.dbName, "error", err)
		return err
	}

	p := c.Policy()
	c.logger.InfoContext(ctx, "Chat logger started", "database", c.dbName)
	c.logger.InfoContext(ctx, "Group filter configured", "whitelist", p.Whitelist(), "blacklist", p.Blacklist())
	c.logger.InfoContext(ctx, "Bot message logging", "enabled", p.IncludeBotMessages())
	return nil
}

// Stop shuts storage down. Errors are logged, not returned.
func (c *Controller) Stop(ctx context.Context) {
	if err := c.gateway.Shutdown(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Error shutting down chat logger", "error", err)
		return
	}
	c.logger.InfoContext(ctx, "Chat logger stopped")
}

// OnGroupMessage persists a user message if its group passes the filter. It
// returns once the write has completed or failed.
func (c *Controller) OnGroupMessage(ctx context.Context, ev event.Event) {
	defer c.recoverPanic(ctx, ev.GroupID)

	c.metrics.IncObserved(false)
	c.handle(ctx, c.normalizer.Normalize(ev))
}

// OnBotResponse persists a reply the bot sent, prefix first, unless bot
// message logging is disabled.
func (c *Controller) OnBotResponse(ctx context.Context, ev event.Event, prefix, body string) {
	defer c.recoverPanic(ctx, ev.GroupID)

	c.metrics.IncObserved(true)
	if !c.Policy().IncludeBotMessages() {
		c.metrics.IncDropped(metrics.DropBotMessage)
		return
	}
	c.handle(ctx, c.normalizer.NormalizeResponse(ev, prefix, body))
}

func (c *Controller) handle(ctx context.Context, msg normalize.Message) {
	if msg.GroupID == "" {
		c.logger.DebugContext(ctx, "Dropping message without group id", "user_id", msg.UserID)
		c.metrics.IncDropped(metrics.DropNoGroup)
		return
	}

	p := c.Policy()
	if !p.Allows(msg.GroupID) {
		c.logger.DebugContext(ctx, "Dropping message from filtered group", "group_id", msg.GroupID)
		c.metrics.IncDropped(metrics.DropFiltered)
		return
	}
	if p.SkipEmptyMessages() && strings.TrimSpace(msg.Text) == "" {
		c.logger.DebugContext(ctx, "Dropping empty message", "group_id", msg.GroupID, "user_id", msg.UserID)
		c.metrics.IncDropped(metrics.DropEmpty)
		return
	}

	rec := &database.ChatRecord{
		UserID:       msg.UserID,
		Nickname:     database.NullableNickname(msg.Nickname),
		Message:      msg.Text,
		Timestamp:    msg.OccurredAt,
		GroupID:      msg.GroupID,
		IsBotMessage: msg.IsBotMessage,
	}
	// The gateway logs and counts its own failures.
	_ = c.gateway.Write(ctx, rec)
}

func (c *Controller) recoverPanic(ctx context.Context, groupID string) {
	if r := recover(); r != nil {
		c.logger.ErrorContext(ctx, "Recovered from panic while logging chat message",
			"group_id", groupID,
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()))
	}
}
