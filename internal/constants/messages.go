package constants

// Text printed by the command-line interface.

// Task registry messages
const (
	MsgTaskAdded         = "Task '%s' added successfully\n"
	MsgTaskRemoved       = "Task '%s' removed successfully\n"
	MsgNoTasks           = "No scheduled tasks\n"
	MsgTaskNotFoundWarn  = "Warning: Task with slug '%s' not found\n"
	MsgTasksActivated    = "Started %d task(s)\n"
	MsgTasksDeactivated  = "Stopped %d task(s)\n"
	MsgAllActivated      = "Started all %d inactive task(s)\n"
	MsgAllAlreadyActive  = "All tasks are already active\n"
	MsgNoValidTasksStart = "no valid tasks found to start"
	MsgNoValidTasksStop  = "no valid tasks found to stop"
	MsgPickedUpNextTick  = "Changes will be picked up on the scheduler's next tick\n"
)

// List table layout
const (
	MsgListHeaderFormat = "%-20s %-20s %-40s %-10s %-17s %-17s\n"
	MsgListRowFormat    = "%-20s %-20s %-40s %-10s %-17s %-17s\n"
	MsgListSeparatorLen = 128
	MsgStatusActive     = "Active"
	MsgStatusInactive   = "Inactive"
	MsgNever            = "Never"
	MsgInvalidRule      = "invalid"
	ListTimeFormat      = "2006-01-02 15:04"
	ListCommandWidth    = 37
)

// Daemon messages
const (
	MsgDaemonStarted        = "Daemon started (PID %d)\n"
	MsgDaemonStopped        = "Daemon stopped successfully\n"
	MsgDaemonRestarted      = "Daemon restarted (PID %d)\n"
	MsgDaemonAlreadyRunning = "Daemon is already running (PID %d)\n"
	MsgDaemonRunning        = "Daemon is running (PID %d)\n"
	MsgDaemonNotRunning     = "Daemon is not running\n"
	MsgDaemonPIDFile        = "  PID file: %s\n"
	MsgDaemonRegistry       = "  Registry: %s\n"
	MsgDaemonTasks          = "  Tasks:    %d total, %d active\n"
)

// Config messages
const (
	MsgConfigLoadError       = "Failed to load configuration: %v\n"
	MsgConfigValidationError = "Configuration validation failed:\n"
	MsgConfigValidatePrefix  = "  - %v\n"
	MsgConfigValid           = "Configuration is valid\n"
)
