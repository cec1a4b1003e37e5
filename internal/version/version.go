package version

import "fmt"

// Set at build time with -ldflags "-X go.aimuz.me/voxmemo/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Full() string {
	return fmt.Sprintf("voxmemo %s, commit %s, built at %s", Version, Commit, Date)
}
