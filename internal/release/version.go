package release

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var ErrNoVersion = errors.New("no version declaration found")

var (
	versionDeclRe  = regexp.MustCompile(`(?m)^\s*(?:__version__|version)\s*=\s*["']([^"']+)["']`)
	versionShapeRe = regexp.MustCompile(`^\d+\.\d+\.\d+(?:[-.+][0-9A-Za-z.-]+)?$`)
)

// ParseVersionFile extracts the release version from a version-declaration
// file. Accepts `__version__ = "x.y.z"` / `version = "x.y.z"` declarations
// and bare VERSION files containing only the version string.
func ParseVersionFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read version file: %w", err)
	}
	return ParseVersion(string(data))
}

func ParseVersion(content string) (string, error) {
	if m := versionDeclRe.FindStringSubmatch(content); m != nil {
		return validate(m[1])
	}

	trimmed := strings.TrimSpace(content)
	if trimmed != "" && !strings.ContainsAny(trimmed, "\n=") {
		return validate(trimmed)
	}

	return "", ErrNoVersion
}

func validate(v string) (string, error) {
	if !versionShapeRe.MatchString(v) {
		return "", fmt.Errorf("malformed version %q", v)
	}
	return v, nil
}

// TagName is the git tag for a version, matching the convention the
// release workflow has always used.
func TagName(version string) string {
	return "v" + version
}
