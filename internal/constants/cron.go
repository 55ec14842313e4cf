package constants

import "time"

// Scheduler timing. These are fixed rather than configurable.

// TickInterval is how often the scheduler loop reloads the registry and
// evaluates tasks. It matches the finest recurrence unit the loop can honour.
const TickInterval = 10 * time.Second

// DueTolerance is the look-ahead window used when deciding whether a task is
// due. Occurrences up to this far past "now" are treated as due on this tick.
const DueTolerance = 30 * time.Second

// StopGracePeriod is how long stop waits after sending the termination
// signal before removing the PID marker.
const StopGracePeriod = 500 * time.Millisecond

// RunLogJanitorInterval bounds how often old run logs are purged.
const RunLogJanitorInterval = time.Hour

// NextRunPreviewCount is the number of upcoming occurrences shown by status views.
const NextRunPreviewCount = 3
