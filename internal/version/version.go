// Package version holds gorepl build information and semantic version checks.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags
var (
	// Version is the semantic version of the application
	Version = "0.1.0"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built
	BuildDate = "unknown"
)

// GoConstraint is the Go toolchain range the embedded stdlib symbol tables
// were generated for.
const GoConstraint = ">= 1.21"

// Info represents comprehensive version information
type Info struct {
	Version   string          `json:"version" yaml:"version"`
	GitCommit string          `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string          `json:"buildDate" yaml:"buildDate"`
	GoVersion string          `json:"goVersion" yaml:"goVersion"`
	Platform  string          `json:"platform" yaml:"platform"`
	SemVer    *semver.Version `json:"-" yaml:"-"`
}

// GetInfo returns comprehensive version information
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}

	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SemVer:    sv,
	}, nil
}

// GetFormattedVersion returns a one-line version string
func GetFormattedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("gorepl v%s (invalid version)", Version)
	}

	parts := []string{fmt.Sprintf("gorepl v%s", info.Version)}

	if info.GitCommit != "unknown" && info.GitCommit != "" {
		shortCommit := info.GitCommit
		if len(shortCommit) > 7 {
			shortCommit = shortCommit[:7]
		}
		parts = append(parts, fmt.Sprintf("commit %s", shortCommit))
	}

	if info.BuildDate != "unknown" && info.BuildDate != "" {
		parts = append(parts, fmt.Sprintf("built %s", info.BuildDate))
	}

	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns detailed version information for debugging
func GetDetailedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("gorepl v%s (error: %v)", Version, err)
	}

	lines := []string{
		fmt.Sprintf("gorepl v%s", info.Version),
		fmt.Sprintf("Git Commit: %s", info.GitCommit),
		fmt.Sprintf("Build Date: %s", info.BuildDate),
	}
	if meta := info.SemVer.Metadata(); meta != "" {
		lines = append(lines, fmt.Sprintf("Build Metadata: %s", meta))
	}
	if pre := info.SemVer.Prerelease(); pre != "" {
		lines = append(lines, fmt.Sprintf("Prerelease: %s", pre))
	}
	if IsDevelopment() {
		lines = append(lines, "Build: development")
	}
	lines = append(lines,
		fmt.Sprintf("Go Version: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	)

	return strings.Join(lines, "\n")
}

// ValidateVersion validates that the current version is a valid semantic version
func ValidateVersion() error {
	_, err := semver.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}
	return nil
}

// IsDevelopment returns true if this appears to be a development build
func IsDevelopment() bool {
	return GitCommit == "unknown" || BuildDate == "unknown"
}

// CheckGoVersion reports whether a Go runtime version such as "go1.24.4" or
// "go1.22rc1" satisfies GoConstraint. Development toolchains ("devel ...")
// always pass.
func CheckGoVersion(goVersion string) (bool, error) {
	if strings.HasPrefix(goVersion, "devel") {
		return true, nil
	}

	raw := strings.TrimPrefix(goVersion, "go")
	// Release candidates are spelled go1.22rc1; semver wants 1.22-rc1.
	if i := strings.IndexAny(raw, "abcdefghijklmnopqrstuvwxyz"); i > 0 {
		raw = raw[:i] + "-" + raw[i:]
	}
	if j := strings.IndexByte(raw, ' '); j > 0 {
		raw = raw[:j]
	}

	sv, err := semver.NewVersion(raw)
	if err != nil {
		return false, fmt.Errorf("invalid Go version '%s': %w", goVersion, err)
	}
	constraint, err := semver.NewConstraint(GoConstraint)
	if err != nil {
		return false, err
	}
	// Prereleases are outside plain ranges; compare the release they lead to.
	if sv.Prerelease() != "" {
		release, _ := sv.SetPrerelease("")
		sv = &release
	}
	return constraint.Check(sv), nil
}
