// Package buildinfo carries release metadata injected at build time.
package buildinfo

// Set via -ldflags "-X github.com/doubletake-dev/doubletake/internal/buildinfo.Version=..." at release builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
