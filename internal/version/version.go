// Package version holds the build version.
package version

import (
	"fmt"
	"strings"
)

// Version is set via ldflags at build time: -ldflags "-X github.com/Alia5/ghostkey/internal/version.Version=x.y.z"
var Version = ""

// Get returns the version string that was set at build time via ldflags.
// Returns "0.0.1-dev" if Version is empty (development builds only).
func Get() string {
	v, err := Parse(Version)
	if err != nil {
		return "0.0.1-dev"
	}
	return v
}

// Parse validates and normalizes a version like "v1.2.3" or "1.2.3-dirty".
func Parse(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty version")
	}
	v := strings.TrimPrefix(raw, "v")
	base := strings.SplitN(v, "-", 2)[0]
	if strings.Count(base, ".") != 2 {
		return "", fmt.Errorf("invalid version format: %s (expected x.y.z)", raw)
	}
	return v, nil
}
