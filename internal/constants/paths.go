package constants

// DefaultDataDir is the directory holding the registry, PID marker and logs.
const DefaultDataDir = "~/.singleschedule"

// HomeEnvVar overrides DefaultDataDir when set.
const HomeEnvVar = "SINGLESCHEDULE_HOME"

// ForegroundEnvVar marks a process spawned by "start" as the detached worker.
const ForegroundEnvVar = "SINGLESCHEDULE_DAEMON_WORKER"

// File names inside the data directory.
const (
	RegistryFileName = "events.json"
	PIDFileName      = "daemon.pid"
	ConfigFileName   = "config.toml"
	EnvFileName      = ".env"
	DaemonLogName    = "daemon.log"
	RunLogDirName    = "logs"
)
