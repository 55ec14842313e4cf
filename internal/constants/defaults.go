package constants

// DefaultVersion is the version reported when none is injected at build time
const DefaultVersion = "0.1.0-dev"

// DefaultBuildTime is the default build time when not provided at build time
const DefaultBuildTime = "unknown"

// DefaultGitCommit is the default git commit hash when not provided at build time
const DefaultGitCommit = "unknown"

// DefaultGoVersion is the default Go version when not provided at build time
const DefaultGoVersion = "unknown"

// DefaultRunLogRetentionHours is how long captured task output is kept.
const DefaultRunLogRetentionHours = 168

// DefaultTimezone is the zone recurrence rules are evaluated in.
const DefaultTimezone = "UTC"

// MetricsNamespace prefixes every exported Prometheus metric.
const MetricsNamespace = "singleschedule"
