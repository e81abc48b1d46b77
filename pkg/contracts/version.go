package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release of the promocli binaries.
	Version = "1.0.0"

	// RulesetVersion changes whenever built-in rule order or predicates change,
	// since the same export can then classify differently.
	RulesetVersion = "2024.10"

	// APIVersion is reported by /api/version.
	APIVersion = "v1"
)

var (
	// BuildTime and GitCommit are stamped with -ldflags -X.
	BuildTime = ""
	GitCommit = ""
)

// VersionInfo is the build description served by /api/version.
type VersionInfo struct {
	Version      string `json:"version"`
	Ruleset      string `json:"ruleset"`
	BuildTime    string `json:"build_time,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo describes the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		Ruleset:      RulesetVersion,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		APIVersion:   APIVersion,
	}
}

// GetVersionString names the release and ruleset.
func GetVersionString() string {
	return fmt.Sprintf("promocli v%s (rules %s)", Version, RulesetVersion)
}

// GetFullVersionString is the line printed by -version, with build metadata
// when it was stamped in.
func GetFullVersionString() string {
	info := GetVersionInfo()
	s := GetVersionString()
	if info.GitCommit != "" {
		s += ", commit " + info.GitCommit
	}
	if info.BuildTime != "" {
		s += ", built " + info.BuildTime
	}
	return fmt.Sprintf("%s, %s %s/%s", s, info.GoVersion, info.OS, info.Architecture)
}
