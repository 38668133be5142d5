package checker

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// DefaultCommand is the checker binary name looked up when no explicit path
// is configured.
const DefaultCommand = "pyrefly"

var ErrCheckerNotFound = errors.New("checker binary not found")

// ResolveBinary locates the checker executable. An explicitly configured
// path wins and must exist; otherwise the binary bundled next to the
// running typeline executable is preferred over whatever is on PATH.
func ResolveBinary(explicit string) (string, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil || info.IsDir() {
			return "", fmt.Errorf("%w: configured path %s", ErrCheckerNotFound, explicit)
		}
		return explicit, nil
	}

	if bundled, ok := bundledBinary(); ok {
		return bundled, nil
	}

	path, err := exec.LookPath(DefaultCommand)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not bundled and not on PATH", ErrCheckerNotFound, DefaultCommand)
	}
	return path, nil
}

func bundledBinary() (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}

	name := DefaultCommand
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	candidate := filepath.Join(filepath.Dir(exe), name)
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", false
	}
	return candidate, true
}
