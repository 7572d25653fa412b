package tasks

import "context"

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// SQLMaintenance is the configuration key of the storage maintenance task.
const SQLMaintenance = "sql_maintenance"

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks, keyed by their scheduler.tasks configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)
	tasks[SQLMaintenance] = newSQLMaintenanceTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
