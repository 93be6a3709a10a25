// Package buildinfo holds release metadata stamped in by the linker, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/dispatchbot/core/buildinfo.Version=$(git describe --tags) \
//	  -X github.com/m3rciful/dispatchbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/dispatchbot/core/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/...
//
// Both dispatchbot and dispatchctl report it: the bot in its startup log
// line, the CLI through --version.
package buildinfo

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC3339; empty for local builds.
	Date = ""
)

// String renders "dispatchbot <version> (<commit>[, <date>])".
func String() string {
	s := "dispatchbot " + Version + " (" + Commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}
