// Package version holds build-time version information for the bh CLI.
//
// The variables are injected with ldflags:
//
//	-ldflags "-X bh/internal/version.version=v0.4.0 -X bh/internal/version.commit=abc123 -X bh/internal/version.buildTime=2026-01-01T00:00:00Z"
package version

import (
	"fmt"
	"io"
	"strings"
)

//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name of the application displayed in version output.
const ApplicationName = "bh"

// Default values used when version information is not available.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Labels used in the full output format.
const (
	LabelVersion   = "Version"
	LabelCommit    = "Commit"
	LabelBuilt     = "Built"
	fieldSeparator = ": "
	lineSeparator  = "\n"
)

// VersionInfo encapsulates all version-related information with proper defaults.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// GetVersion returns the current version information with defaults applied.
func GetVersion() *VersionInfo {
	return &VersionInfo{
		Version:   withDefault(version, DefaultVersion),
		Commit:    withDefault(commit, DefaultCommit),
		BuildTime: withDefault(buildTime, DefaultBuildTime),
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// UserAgent returns the User-Agent header value sent to the BountyHub API.
func UserAgent() string {
	return ApplicationName + "/" + GetVersion().Version
}

// FormatShort returns only the version number.
func (vi *VersionInfo) FormatShort() string {
	return vi.Version
}

// FormatFull returns a multi-line output with application name, version, commit and build time.
func (vi *VersionInfo) FormatFull() string {
	var builder strings.Builder

	builder.WriteString(ApplicationName)
	builder.WriteString(lineSeparator)
	for _, kv := range [][2]string{
		{LabelVersion, vi.Version},
		{LabelCommit, vi.Commit},
		{LabelBuilt, vi.BuildTime},
	} {
		builder.WriteString(kv[0])
		builder.WriteString(fieldSeparator)
		builder.WriteString(kv[1])
		builder.WriteString(lineSeparator)
	}

	return builder.String()
}

// Write formats the version based on the short flag and writes to the provided writer.
func (vi *VersionInfo) Write(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, vi.FormatShort())
		return err
	}
	_, err := fmt.Fprint(w, vi.FormatFull())
	return err
}

// IsDevelopment returns true if the version indicates a development build.
func (vi *VersionInfo) IsDevelopment() bool {
	return vi.Version == DefaultVersion
}

// SetBuildVars sets the build-time variables. Intended for tests.
func SetBuildVars(ver, com, bt string) {
	version = ver
	commit = com
	buildTime = bt
}

// ResetBuildVars resets all build variables to empty values.
func ResetBuildVars() {
	SetBuildVars("", "", "")
}
