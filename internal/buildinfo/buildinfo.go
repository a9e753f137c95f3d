// Package buildinfo holds version information injected at build time via ldflags.
package buildinfo

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Short returns "version (commit)" for log lines.
func Short() string {
	return Version + " (" + CommitHash + ")"
}
