// Package version holds the CLI version string. Default is "dev"; release
// builds can set it via: go build -ldflags "-X tagtrim/cli/internal/version.Version=v1.0.0"
// Commit is the short (7-char) git commit hash for dev builds; set by Makefile.
package version

import "github.com/fatih/color"

// Version is the tagtrim CLI version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash (e.g. 7 chars). Set at build time for dev builds via ldflags.
var Commit = ""

// BuildDate is an optional build date in ISO-8601.
var BuildDate = ""

var (
	nameColor    = color.New(color.FgGreen, color.Bold)
	versionColor = color.New(color.FgYellow)
)

// String returns the version string for display (e.g. --version).
// For dev builds with Commit set, returns "dev (abc1234)"; otherwise returns Version.
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// Banner is the line printed by the version command. Colors apply only
// when stdout is a terminal.
func Banner() string {
	s := nameColor.Sprint("tagtrim") + " " + versionColor.Sprint(String())
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
