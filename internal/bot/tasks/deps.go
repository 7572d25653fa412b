// Package tasks implements the scheduled maintenance tasks of the chat logger.
package tasks

import (
	"context"
	"log/slog"
)

// Maintainer runs storage housekeeping.
type Maintainer interface {
	RunMaintenance(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger     *slog.Logger
	Maintainer Maintainer
}
