// Package version exposes build metadata stamped in at link time.
package version

// Set with -ldflags "-X .../internal/version.Version=... -X .../internal/version.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)
