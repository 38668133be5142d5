package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeCheckerScript writes a shell script that prints the given JSON and
// exits with the given status.
func fakeCheckerScript(t *testing.T, output string, exit int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake checker script requires a shell")
	}

	script := fmt.Sprintf("#!/bin/sh\ncat <<'EOF'\n%s\nEOF\nexit %d\n", output, exit)
	path := filepath.Join(t.TempDir(), "pyrefly")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRunnerConfig(t *testing.T, binary string) Config {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "app.py"), []byte("x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	return Config{
		Binary: binary,
		Root:   root,
		Globs: FilteredGlobs{
			Root:     root,
			Includes: []string{"**/*.py"},
		},
	}
}

func TestCheckCleanRun(t *testing.T) {
	binary := fakeCheckerScript(t, `{"errors": []}`, 0)
	r := New(testRunnerConfig(t, binary), nil)

	result, err := r.Check(context.Background(), nil)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.ExitStatus != ExitSuccess {
		t.Errorf("ExitStatus = %d, want %d", result.ExitStatus, ExitSuccess)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}
	if len(result.Files) != 1 {
		t.Errorf("Files = %v, want the one project file", result.Files)
	}
}

func TestCheckCleanExitWithGarbageOutput(t *testing.T) {
	// Some checker builds print non-JSON banners on a clean run. The run
	// still succeeds with zero diagnostics.
	binary := fakeCheckerScript(t, "all checks passed!", 0)
	r := New(testRunnerConfig(t, binary), nil)

	result, err := r.Check(context.Background(), nil)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.ExitStatus != ExitSuccess {
		t.Errorf("ExitStatus = %d, want %d", result.ExitStatus, ExitSuccess)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}
}

func TestCheckReportsTypeErrors(t *testing.T) {
	output := `{"errors": [{"path": "app.py", "line": 1, "column": 1, "code": "bad-assignment", "message": "expected int"}]}`
	binary := fakeCheckerScript(t, output, 1)
	r := New(testRunnerConfig(t, binary), nil)

	result, err := r.Check(context.Background(), nil)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.ExitStatus != ExitErrors {
		t.Errorf("ExitStatus = %d, want %d", result.ExitStatus, ExitErrors)
	}
	if len(result.Errors) != 1 || result.Errors[0].Code != "bad-assignment" {
		t.Errorf("Errors = %v", result.Errors)
	}
}

func TestCheckInfraFailure(t *testing.T) {
	binary := fakeCheckerScript(t, "panic: internal error", 3)
	r := New(testRunnerConfig(t, binary), nil)

	result, err := r.Check(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for infra failure")
	}
	if result.ExitStatus != ExitInfra {
		t.Errorf("ExitStatus = %d, want %d", result.ExitStatus, ExitInfra)
	}
}

func TestCheckMissingBinary(t *testing.T) {
	cfg := testRunnerConfig(t, filepath.Join(t.TempDir(), "nope"))
	r := New(cfg, nil)

	result, err := r.Check(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for a missing binary")
	}
	if result.ExitStatus != ExitInfra {
		t.Errorf("ExitStatus = %d, want %d", result.ExitStatus, ExitInfra)
	}
}

func TestCheckNoFiles(t *testing.T) {
	r := New(Config{
		Binary: "unused",
		Root:   t.TempDir(),
		Globs: FilteredGlobs{
			Root:     t.TempDir(),
			Includes: []string{"**/*.py"},
		},
	}, nil)

	_, err := r.Check(context.Background(), nil)
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}
}

func TestCheckExplicitFilesSkipGlobs(t *testing.T) {
	binary := fakeCheckerScript(t, `{"errors": []}`, 0)
	cfg := testRunnerConfig(t, binary)
	r := New(cfg, nil)

	result, err := r.Check(context.Background(), []string{"only.py"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(result.Files) != 1 || result.Files[0] != "only.py" {
		t.Errorf("Files = %v, want the explicit file", result.Files)
	}
}

func TestBuildArgs(t *testing.T) {
	r := New(Config{
		Binary:              "pyrefly",
		SuppressErrors:      true,
		RemoveUnusedIgnores: true,
		ExtraArgs:           []string{"--threads", "4"},
	}, nil)

	args := r.buildArgs([]string{"a.py", "b.py"})
	want := []string{
		"check", "--output-format", "json",
		"--suppress-errors", "--remove-unused-ignores",
		"--threads", "4",
		"a.py", "b.py",
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}
