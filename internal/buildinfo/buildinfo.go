// Package buildinfo carries the identifiers stamped into the binary at
// build time via -ldflags.
package buildinfo

var (
	// Version is the release tag, or "dev" for untagged builds.
	Version = "dev"

	// Commit is the short VCS revision, when known.
	Commit = ""
)

// Short returns the identifier shown by uname and the boot banner.
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "":
		return "dev+" + Commit
	default:
		return "dev"
	}
}
