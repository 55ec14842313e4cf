package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/logger"
)

// DefaultDataDir returns the data directory: $SINGLESCHEDULE_HOME when
// set, otherwise ~/.singleschedule.
func DefaultDataDir() string {
	if dir := os.Getenv(constants.HomeEnvVar); dir != "" {
		return expandHome(dir)
	}
	return expandHome(constants.DefaultDataDir)
}

// DefaultPath returns the configuration file inside the default data directory.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), constants.ConfigFileName)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the TOML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	expandEnvVars(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Paths.DataDir == "" {
		errors = append(errors, fmt.Errorf("paths.data_dir is required"))
	}
	if c.Paths.RegistryFile == "" {
		errors = append(errors, fmt.Errorf("paths.registry_file is required"))
	}
	if c.Paths.PIDFile == "" {
		errors = append(errors, fmt.Errorf("paths.pid_file is required"))
	}
	if c.Paths.RegistryFile != "" && filepath.Clean(c.Paths.RegistryFile) == filepath.Clean(c.Paths.PIDFile) {
		errors = append(errors, fmt.Errorf("paths.registry_file and paths.pid_file must differ"))
	}

	if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Runs.RetentionHours < 0 {
		errors = append(errors, fmt.Errorf("runs.retention_hours must be >= 0 (got %d)", c.Runs.RetentionHours))
	}
	if c.Runs.Enabled() && c.Runs.LogDir == "" {
		errors = append(errors, fmt.Errorf("runs.log_dir is required when runs.log_output is enabled"))
	}

	if _, err := c.Scheduler.Location(); err != nil {
		errors = append(errors, fmt.Errorf("invalid scheduler.timezone: %s: %w", c.Scheduler.Timezone, err))
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errors = append(errors, fmt.Errorf("invalid metrics.listen: %s: %w", c.Metrics.Listen, err))
		}
	}

	return errors
}

// LoggerConfig converts the logging section for logger.New.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// applyDefaults fills unset fields. Paths derived from the data directory
// follow it when only data_dir is set.
func applyDefaults(c *Config) {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = DefaultDataDir()
	}
	c.Paths.DataDir = expandHome(c.Paths.DataDir)

	if c.Paths.RegistryFile == "" {
		c.Paths.RegistryFile = filepath.Join(c.Paths.DataDir, constants.RegistryFileName)
	}
	c.Paths.RegistryFile = expandHome(c.Paths.RegistryFile)
	if c.Paths.PIDFile == "" {
		c.Paths.PIDFile = filepath.Join(c.Paths.DataDir, constants.PIDFileName)
	}
	c.Paths.PIDFile = expandHome(c.Paths.PIDFile)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = filepath.Join(c.Paths.DataDir, constants.DaemonLogName)
	}
	if !isStream(c.Logging.Output) {
		c.Logging.Output = expandHome(c.Logging.Output)
	}

	if c.Runs.LogDir == "" {
		c.Runs.LogDir = filepath.Join(c.Paths.DataDir, constants.RunLogDirName)
	}
	c.Runs.LogDir = expandHome(c.Runs.LogDir)
	if c.Runs.RetentionHours == 0 {
		c.Runs.RetentionHours = constants.DefaultRunLogRetentionHours
	}

	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = constants.DefaultTimezone
	}
}

func isStream(output string) bool {
	switch strings.ToLower(output) {
	case "stdout", "stderr":
		return true
	}
	return false
}

// expandEnvVars expands ${VAR} and ${VAR:default} references.
func expandEnvVars(c *Config) {
	fields := []*string{
		&c.Paths.DataDir,
		&c.Paths.RegistryFile,
		&c.Paths.PIDFile,
		&c.Logging.Level,
		&c.Logging.Format,
		&c.Logging.Output,
		&c.Runs.LogDir,
		&c.Scheduler.Timezone,
		&c.Metrics.Listen,
	}
	for _, f := range fields {
		if strings.HasPrefix(*f, "${") {
			*f = expandEnv(*f)
		}
	}
}

// expandEnv expands a value of the form ${VAR:default}. Text after the
// closing brace is kept.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	rest := s[end+1:]
	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val + rest
		}
		return parts[1] + rest
	}

	return os.Getenv(content) + rest
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
