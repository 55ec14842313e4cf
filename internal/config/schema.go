// Package config loads the optional TOML configuration file.
//
// Every setting has a default, so a missing file is valid. String values
// may reference environment variables as ${VAR} or ${VAR:default}, and
// paths may start with ~/. A .env file in the data directory is loaded
// before expansion.
//
// Sections:
//   - [paths]: data directory, registry file and PID marker
//   - [logging]: daemon log level, format and output
//   - [runs]: captured task output files and their retention
//   - [scheduler]: time zone recurrence rules are evaluated in
//   - [metrics]: optional Prometheus endpoint
package config

import "time"

// Config represents the application configuration.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Logging   LoggingConfig   `toml:"logging"`
	Runs      RunsConfig      `toml:"runs"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// PathsConfig locates the files shared by the CLI and the daemon.
type PathsConfig struct {
	DataDir      string `toml:"data_dir"`
	RegistryFile string `toml:"registry_file"`
	PIDFile      string `toml:"pid_file"`
}

// LoggingConfig configures the daemon's structured log.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// RunsConfig controls where captured task output goes.
type RunsConfig struct {
	LogOutput      *bool  `toml:"log_output"`
	LogDir         string `toml:"log_dir"`
	RetentionHours int    `toml:"retention_hours"`
}

// Enabled reports whether run output is written to files.
func (r RunsConfig) Enabled() bool {
	return r.LogOutput == nil || *r.LogOutput
}

// Retention returns how long run log files are kept.
func (r RunsConfig) Retention() time.Duration {
	return time.Duration(r.RetentionHours) * time.Hour
}

// SchedulerConfig configures recurrence evaluation.
type SchedulerConfig struct {
	Timezone string `toml:"timezone"`
}

// Location resolves the configured time zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}
