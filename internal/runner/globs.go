package runner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// FilteredGlobs pairs include patterns with exclude patterns, both rooted
// at the project directory. A file is selected when any include matches and
// no exclude does.
type FilteredGlobs struct {
	Root     string
	Includes []string
	Excludes []string
}

// Collect walks the include patterns and returns the matching files,
// de-duplicated and sorted, as paths relative to Root.
func (g *FilteredGlobs) Collect() ([]string, error) {
	seen := make(map[string]struct{})
	fsys := os.DirFS(g.Root)

	for _, pattern := range g.Includes {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}

		for _, match := range matches {
			if g.excluded(match) {
				continue
			}
			if info, err := fs.Stat(fsys, match); err != nil || info.IsDir() {
				continue
			}
			seen[match] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// Matches reports whether a path (absolute or root-relative) is selected.
func (g *FilteredGlobs) Matches(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(g.Root, path)
		if err != nil {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	if g.excluded(rel) {
		return false
	}

	for _, pattern := range g.Includes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (g *FilteredGlobs) excluded(rel string) bool {
	for _, pattern := range g.Excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
