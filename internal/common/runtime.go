package common

import (
	"fmt"
	"runtime/debug"
)

var (
	// Git SHA commit (only first few characters)
	BuildCommit = "HEAD"

	// Build date and time
	BuildTime = "N/A"

	// BuildGoVersion carries Go version the binary was built with
	BuildGoVersion string
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		BuildGoVersion = bi.GoVersion

		for _, bs := range bi.Settings {
			switch bs.Key {
			case "vcs.revision":
				if len(bs.Value) > 6 {
					BuildCommit = bs.Value[0:6]
				}
			case "vcs.time":
				BuildTime = bs.Value
			}
		}
	}
}

// VersionString describes the running binary for `cgcloud version`.
func VersionString() string {
	return fmt.Sprintf("cgcloud %s (built %s with %s)", BuildCommit, BuildTime, BuildGoVersion)
}
