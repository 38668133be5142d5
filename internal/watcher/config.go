package watcher

import "time"

type WatcherConfig struct {
	Enabled        bool          `json:"enabled"`
	DebounceWindow time.Duration `json:"debounce_window"`
	MaxBatchSize   int           `json:"max_batch_size"`
	Extensions     []string      `json:"extensions"`
	IgnorePatterns []string      `json:"ignore_patterns"`
	WatchHidden    bool          `json:"watch_hidden"`
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Enabled:        true,
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		Extensions:     []string{".py", ".pyi"},
		IgnorePatterns: []string{
			"**/.git/**",
			"**/__pycache__/**",
			"**/.venv/**",
			"**/venv/**",
			"**/.mypy_cache/**",
			"**/.pytype/**",
			"**/node_modules/**",
			"**/build/**",
			"**/dist/**",
		},
		WatchHidden: false,
	}
}
