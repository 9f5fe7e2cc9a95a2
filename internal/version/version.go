// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/convoshop/realtime/internal/version.Version=1.0.0 \
//	                   -X github.com/convoshop/realtime/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/convoshop/realtime/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Without ldflags, Commit and BuildTime fall back to the VCS stamp in the
// binary's build info.
package version

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var stampOnce sync.Once

func stamp() {
	stampOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "unknown" && s.Value != "" {
					Commit = s.Value
					if len(Commit) > 7 {
						Commit = Commit[:7]
					}
				}
			case "vcs.time":
				if BuildTime == "unknown" && s.Value != "" {
					BuildTime = s.Value
				}
			}
		}
	})
}

// String returns a formatted version string.
func String() string {
	stamp()
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent is sent on every REST request.
func UserAgent() string {
	return "convoshop-realtime/" + Version
}

// Attr groups the build info for structured logs.
func Attr() slog.Attr {
	stamp()
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("time", BuildTime),
	)
}
