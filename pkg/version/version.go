package version

import (
	"fmt"
	"runtime"
)

// Name is the service name reported by the health endpoint and CLIs
const Name = "adpilot"

// Build information, set via ldflags:
//
//	-X github.com/frostdev-ops/adpilot-backend-go/pkg/version.Version=1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo contains all build-related information
type BuildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// GetVersion returns the release version, or dev-<short commit> for development builds
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if len(GitCommit) >= 8 {
		return "dev-" + GitCommit[:8]
	}
	return "dev-" + GitCommit
}

// String returns a one-line description for --version output
func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		Name, GetVersion(), GitCommit, BuildDate, runtime.Version())
}

// GetBuildInfo returns all build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Service:   Name,
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}
