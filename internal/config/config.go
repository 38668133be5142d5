package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alucardeht/typeline/internal/watcher"
)

const FileName = "typeline.json"

var (
	ErrNoWorkspaceRoot = errors.New("workspace root is not set")
	ErrCheckerMissing  = errors.New("configured checker binary does not exist")
)

type CheckerConfig struct {
	// Path is the explicit checker binary. Empty means fall back to the
	// bundled binary next to the typeline executable, then PATH.
	Path string   `json:"path,omitempty"`
	Args []string `json:"args,omitempty"`
}

type PythonConfig struct {
	// Interpreter pins the interpreter reported to the checker. Empty means
	// discover per scope.
	Interpreter string `json:"interpreter,omitempty"`
}

type ProjectConfig struct {
	Includes []string `json:"includes"`
	Excludes []string `json:"excludes"`
}

type PlaygroundConfig struct {
	Addr    string `json:"addr"`
	SiteDir string `json:"site_dir"`
}

type ReleaseConfig struct {
	VersionFile    string   `json:"version_file"`
	Platforms      []string `json:"platforms"`
	DistDir        string   `json:"dist_dir"`
	BuildCommand   []string `json:"build_command"`
	PublishCommand []string `json:"publish_command"`
	PagesBranch    string   `json:"pages_branch"`
	SiteDir        string   `json:"site_dir"`
}

type Config struct {
	// Root is the workspace the config was discovered in. Not serialized.
	Root string `json:"-"`

	Checker    CheckerConfig         `json:"checker"`
	Python     PythonConfig          `json:"python"`
	Project    ProjectConfig         `json:"project"`
	Playground PlaygroundConfig      `json:"playground"`
	Release    ReleaseConfig         `json:"release"`
	Watcher    watcher.WatcherConfig `json:"watcher"`
	StorePath  string                `json:"store_path,omitempty"`
	LogLevel   string                `json:"log_level,omitempty"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Checker: CheckerConfig{},
		Python:  PythonConfig{},
		Project: ProjectConfig{
			Includes: []string{"**/*.py", "**/*.pyi"},
			Excludes: []string{
				"**/__pycache__/**",
				"**/.venv/**",
				"**/venv/**",
				"**/node_modules/**",
				"**/.git/**",
			},
		},
		Playground: PlaygroundConfig{
			Addr:    "127.0.0.1:8780",
			SiteDir: "site/build",
		},
		Release: ReleaseConfig{
			VersionFile: "version.py",
			Platforms: []string{
				"linux/amd64",
				"linux/arm64",
				"darwin/amd64",
				"darwin/arm64",
				"windows/amd64",
			},
			DistDir:     "dist",
			PagesBranch: "gh-pages",
			SiteDir:     "site/build",
		},
		Watcher:   watcher.DefaultWatcherConfig(),
		StorePath: filepath.Join(homeDir, ".typeline", "typeline.db"),
		LogLevel:  "info",
	}
}

// Load discovers a config file by walking upward from startDir, pyrefly
// style. When no file is found the defaults apply and Root is startDir.
func Load(startDir string) (*Config, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	path, found := findUpward(abs)
	if !found {
		cfg := Default()
		cfg.Root = abs
		cfg.applyEnv()
		return cfg, nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Root = filepath.Dir(path)
	cfg.applyEnv()
	return cfg, nil
}

func findUpward(dir string) (string, bool) {
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (c *Config) applyEnv() {
	if path := os.Getenv("TYPELINE_CHECKER"); path != "" {
		c.Checker.Path = path
	}
	if interp := os.Getenv("TYPELINE_PYTHON"); interp != "" {
		c.Python.Interpreter = interp
	}
}

// ValidateServe enforces the hard requirements of the editor bridge. It
// fails before any checker process is spawned: a broken setting surfaces as
// an activation error, never a degraded server.
func (c *Config) ValidateServe() error {
	if c.Root == "" {
		return ErrNoWorkspaceRoot
	}

	if c.Checker.Path != "" {
		if info, err := os.Stat(c.Checker.Path); err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s", ErrCheckerMissing, c.Checker.Path)
		}
	}

	return nil
}

// Write serializes the config to path, used by `typeline init`.
func (c *Config) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}
