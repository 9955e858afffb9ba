// Package version holds build-time version information, set via ldflags
// by GoReleaser (or left at its "dev" defaults for local builds).
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns formatted version information.
func Info() string {
	return fmt.Sprintf("fragment %s (commit: %s, built: %s) %s",
		Version, Commit, Date, runtime.Version())
}

// Short returns just the version string.
func Short() string {
	return Version
}
