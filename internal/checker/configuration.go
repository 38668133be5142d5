package checker

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/alucardeht/typeline/internal/pyenv"
)

// PythonSection is the configuration section the middleware rewrites.
const PythonSection = "python"

// Settings is the opaque configuration blob forwarded to the checker.
type Settings map[string]interface{}

// ConfigMiddleware answers workspace/configuration requests from the
// checker. Items asking for the python section get the active interpreter
// injected as pythonPath; every other section is returned exactly as the
// base lookup produced it.
type ConfigMiddleware struct {
	// Base produces the raw configuration object for an item. Nil results
	// are legal and pass through as nil.
	Base func(ConfigurationItem) interface{}

	// Resolver finds the active interpreter for a scope. Nil disables
	// injection entirely.
	Resolver *pyenv.Resolver
}

// Configuration maps a request batch to its response batch. The response
// always has the same length as the request.
func (m *ConfigMiddleware) Configuration(items []ConfigurationItem) []interface{} {
	results := make([]interface{}, len(items))

	for i, item := range items {
		result := m.base(item)

		if item.Section == PythonSection {
			result = m.injectPythonPath(result, item)
		}

		results[i] = result
	}

	return results
}

func (m *ConfigMiddleware) base(item ConfigurationItem) interface{} {
	if m.Base == nil {
		return nil
	}
	return m.Base(item)
}

// injectPythonPath adds pythonPath to the settings object. The original is
// never mutated; a non-object result or a missing interpreter leaves the
// response unchanged.
func (m *ConfigMiddleware) injectPythonPath(result interface{}, item ConfigurationItem) interface{} {
	if m.Resolver == nil {
		return result
	}

	interpreter, ok := m.Resolver.Active(ScopeRoot(item.ScopeURI))
	if !ok {
		return result
	}

	switch settings := result.(type) {
	case nil:
		return Settings{"pythonPath": interpreter}
	case Settings:
		return withPythonPath(settings, interpreter)
	case map[string]interface{}:
		return withPythonPath(settings, interpreter)
	default:
		return result
	}
}

func withPythonPath(settings map[string]interface{}, interpreter string) Settings {
	merged := make(Settings, len(settings)+1)
	for k, v := range settings {
		merged[k] = v
	}
	merged["pythonPath"] = interpreter
	return merged
}

// ScopeRoot converts a workspace scope URI to a filesystem path, or ""
// when the scope is absent or not a file URI.
func ScopeRoot(scopeURI string) string {
	if scopeURI == "" {
		return ""
	}

	u, err := url.Parse(scopeURI)
	if err != nil || u.Scheme != "file" {
		return ""
	}

	path := u.Path
	// Windows file URIs look like file:///C:/dir.
	if strings.HasPrefix(path, "/") && len(path) > 2 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}

// FileURI converts a filesystem path to a file URI.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}
