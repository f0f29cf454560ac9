// Package version provides build-time version information.
// These variables are set via ldflags at build time.
package version

var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "none"

	// Date is the build date in RFC3339 format
	Date = "unknown"
)

// Full returns the full version string for display.
func Full() string {
	if Version == "dev" {
		return "market version dev (built from source)"
	}
	s := "market version " + Version
	if Commit != "none" && Commit != "" {
		short := Commit
		if len(short) > 7 {
			short = short[:7]
		}
		s += " (" + short + ")"
	}
	return s
}

// UserAgent returns the user agent string for API requests.
func UserAgent() string {
	return "market-cli/" + Version + " (https://github.com/matmarket/market-cli)"
}

// IsDev reports whether this is an unreleased build.
func IsDev() bool {
	return Version == "dev"
}
