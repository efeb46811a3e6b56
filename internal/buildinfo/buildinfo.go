// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/scamguard-linebot-go/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
var BuildDate = ""

// Release returns "scamguard@VERSION", falling back to the short commit
// and finally "dev".
func Release() string {
	switch {
	case Version != "":
		return "scamguard@" + Version
	case len(Commit) >= 7:
		return "scamguard@" + Commit[:7]
	case Commit != "":
		return "scamguard@" + Commit
	default:
		return "scamguard@dev"
	}
}
