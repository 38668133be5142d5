package pyenv

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Interpreter discovery order: explicit override, the VIRTUAL_ENV the tool
// was launched under, a .venv/venv directory found by walking up from the
// scope root, then the first python3/python on PATH.

var defaultInterpreters = []string{"python3", "python"}

var venvDirNames = []string{".venv", "venv"}

type Resolver struct {
	// Override pins the interpreter regardless of environment. Empty means
	// discover.
	Override string
}

// Active returns the interpreter path for the given workspace scope, or
// ("", false) when none can be found. A scope of "" restricts discovery to
// the environment and PATH.
func (r *Resolver) Active(scopeRoot string) (string, bool) {
	if r != nil && r.Override != "" {
		if isExecutable(r.Override) {
			return r.Override, true
		}
		return "", false
	}

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		if path, ok := interpreterInVenv(venv); ok {
			return path, true
		}
	}

	if scopeRoot != "" {
		if path, ok := findVenvUpward(scopeRoot); ok {
			return path, true
		}
	}

	for _, name := range defaultInterpreters {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}

	return "", false
}

func findVenvUpward(root string) (string, bool) {
	dir, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}

	for {
		for _, name := range venvDirNames {
			if path, ok := interpreterInVenv(filepath.Join(dir, name)); ok {
				return path, true
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func interpreterInVenv(venvDir string) (string, bool) {
	var candidate string
	if runtime.GOOS == "windows" {
		candidate = filepath.Join(venvDir, "Scripts", "python.exe")
	} else {
		candidate = filepath.Join(venvDir, "bin", "python")
	}

	if isExecutable(candidate) {
		return candidate, true
	}
	return "", false
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
