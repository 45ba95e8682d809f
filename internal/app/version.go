package app

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/heartmarshall/zengin-sync/internal/app.Version=1.4.0".
// Commit and BuildTime fall back to the VCS stamp embedded by the go tool.
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// BuildVersion is the version line shown at startup and by zenginctl version.
func BuildVersion() string {
	commit, built := Commit, BuildTime
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, orUnknown(commit), orUnknown(built))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
