package checker

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/alucardeht/typeline/internal/pyenv"
)

// fakeInterpreter writes an executable file and returns a resolver pinned
// to it, so injection runs without any python on the machine.
func fakeInterpreter(t *testing.T) *pyenv.Resolver {
	t.Helper()

	name := "python3"
	if runtime.GOOS == "windows" {
		name = "python3.exe"
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return &pyenv.Resolver{Override: path}
}

func TestConfigurationLengthPreserved(t *testing.T) {
	m := &ConfigMiddleware{Resolver: fakeInterpreter(t)}

	for _, n := range []int{0, 1, 5} {
		items := make([]ConfigurationItem, n)
		for i := range items {
			items[i] = ConfigurationItem{Section: "editor"}
		}

		results := m.Configuration(items)
		if len(results) != n {
			t.Errorf("Configuration of %d items returned %d results", n, len(results))
		}
	}
}

func TestConfigurationInjectsPythonPath(t *testing.T) {
	resolver := fakeInterpreter(t)
	m := &ConfigMiddleware{
		Base: func(item ConfigurationItem) interface{} {
			return Settings{"typeCheckingMode": "strict"}
		},
		Resolver: resolver,
	}

	results := m.Configuration([]ConfigurationItem{{Section: PythonSection}})

	settings, ok := results[0].(Settings)
	if !ok {
		t.Fatalf("result is %T, want Settings", results[0])
	}
	if settings["pythonPath"] != resolver.Override {
		t.Errorf("pythonPath = %v, want %v", settings["pythonPath"], resolver.Override)
	}
	if settings["typeCheckingMode"] != "strict" {
		t.Errorf("existing key lost: %v", settings)
	}
}

func TestConfigurationNilBaseGetsInterpreterOnly(t *testing.T) {
	resolver := fakeInterpreter(t)
	m := &ConfigMiddleware{Resolver: resolver}

	results := m.Configuration([]ConfigurationItem{{Section: PythonSection}})

	settings, ok := results[0].(Settings)
	if !ok {
		t.Fatalf("result is %T, want Settings", results[0])
	}
	want := Settings{"pythonPath": resolver.Override}
	if !reflect.DeepEqual(settings, want) {
		t.Errorf("settings = %v, want %v", settings, want)
	}
}

func TestConfigurationOtherSectionsUntouched(t *testing.T) {
	base := Settings{"tabSize": 4}
	m := &ConfigMiddleware{
		Base: func(item ConfigurationItem) interface{} {
			return base
		},
		Resolver: fakeInterpreter(t),
	}

	results := m.Configuration([]ConfigurationItem{{Section: "editor"}})

	settings, ok := results[0].(Settings)
	if !ok {
		t.Fatalf("result is %T, want Settings", results[0])
	}
	if _, injected := settings["pythonPath"]; injected {
		t.Error("pythonPath injected into a non-python section")
	}
	if settings["tabSize"] != 4 {
		t.Errorf("non-python section altered: %v", settings)
	}
}

func TestConfigurationNonObjectResultUnchanged(t *testing.T) {
	m := &ConfigMiddleware{
		Base: func(item ConfigurationItem) interface{} {
			return "a string, not settings"
		},
		Resolver: fakeInterpreter(t),
	}

	results := m.Configuration([]ConfigurationItem{{Section: PythonSection}})
	if results[0] != "a string, not settings" {
		t.Errorf("non-object result rewritten: %v", results[0])
	}
}

func TestConfigurationBaseNotMutated(t *testing.T) {
	base := Settings{"typeCheckingMode": "basic"}
	m := &ConfigMiddleware{
		Base: func(item ConfigurationItem) interface{} {
			return base
		},
		Resolver: fakeInterpreter(t),
	}

	m.Configuration([]ConfigurationItem{{Section: PythonSection}})

	if _, leaked := base["pythonPath"]; leaked {
		t.Error("injection mutated the base settings object")
	}
}

func TestConfigurationNoInterpreterFoundUnchanged(t *testing.T) {
	base := Settings{"typeCheckingMode": "basic"}
	m := &ConfigMiddleware{
		Base: func(item ConfigurationItem) interface{} {
			return base
		},
		Resolver: &pyenv.Resolver{Override: filepath.Join(t.TempDir(), "missing")},
	}

	results := m.Configuration([]ConfigurationItem{{Section: PythonSection}})

	settings := results[0].(Settings)
	if _, injected := settings["pythonPath"]; injected {
		t.Error("pythonPath injected although no interpreter exists")
	}
}

func TestConfigurationNoResolverIsIdentity(t *testing.T) {
	m := &ConfigMiddleware{
		Base: func(item ConfigurationItem) interface{} {
			return Settings{"k": "v"}
		},
	}

	results := m.Configuration([]ConfigurationItem{{Section: PythonSection}})
	settings := results[0].(Settings)
	if _, injected := settings["pythonPath"]; injected {
		t.Error("pythonPath injected without a resolver")
	}
}

func TestScopeRoot(t *testing.T) {
	if got := ScopeRoot(""); got != "" {
		t.Errorf("ScopeRoot(\"\") = %q", got)
	}
	if got := ScopeRoot("untitled:Untitled-1"); got != "" {
		t.Errorf("non-file scope: got %q", got)
	}

	if runtime.GOOS != "windows" {
		if got := ScopeRoot("file:///home/dev/proj"); got != "/home/dev/proj" {
			t.Errorf("ScopeRoot = %q", got)
		}
	}
}
