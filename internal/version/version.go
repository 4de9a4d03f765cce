package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

//nolint:gochecknoglobals // Injected via ldflags.
var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortSHALength is the length of an abbreviated git revision.
const shortSHALength = 7

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit, build time and Go version.
func Full() string {
	return fmt.Sprintf("smokewatch %s, commit: %s, built at: %s, %s", Version, Revision(), BuildTime, runtime.Version())
}

// Revision returns Commit, falling back to the VCS revision stamped by the Go toolchain.
func Revision() string {
	if Commit != "" && Commit != "none" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= shortSHALength {
			return setting.Value[:shortSHALength]
		}
	}

	return Commit
}
