// Package version holds build metadata injected through -ldflags.
package version

import (
	"fmt"

	"github.com/aatumaykin/singleschedule/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = constants.DefaultGoVersion
)

// SetInfo overrides the build metadata. Empty values keep the defaults.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String renders a one-line summary used in logs and "version" output.
func String() string {
	return fmt.Sprintf("singleschedule %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}
