// Package version carries the Loom build's version metadata, shared by the
// loomd daemon and the loom CLI.
package version

// Stamped via -ldflags at build time; "dev" builds keep the defaults.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
