package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/nxqos/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/nxqos/internal/version.Commit=abc123"
//
// Release builds set both. Development builds fall back to the VCS stamps
// Go embeds when building inside a git checkout, then to a dated dev string.
var (
	// Version is the semantic version of the nxqos release.
	Version = ""
	// Commit is the git commit the binary was built from.
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo()
	}
	if Version == "" {
		Version = "0.0.0-dev." + time.Now().Format("20060102")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	stamps := make(map[string]string)
	for _, s := range info.Settings {
		stamps[s.Key] = s.Value
	}

	if Commit == "" {
		if rev := stamps["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			if stamps["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			Commit = rev
		}
	}

	// Build info carries no tags, so the best available dev version is one
	// dated to the commit.
	if Version == "" {
		if t, err := time.Parse(time.RFC3339, stamps["vcs.time"]); err == nil {
			Version = "0.0.0-dev." + t.Format("20060102")
		}
	}
}

// Full returns the version with the commit, e.g. "0.0.0-dev.20260823 (abc1234)".
func Full() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

// UserAgent identifies this tool in device request logs.
func UserAgent() string {
	return "nxqos/" + Version
}
