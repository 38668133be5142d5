package checker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveBinaryExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyrefly")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveBinary(path)
	if err != nil {
		t.Fatalf("ResolveBinary failed: %v", err)
	}
	if got != path {
		t.Errorf("ResolveBinary = %q, want %q", got, path)
	}
}

func TestResolveBinaryExplicitMissing(t *testing.T) {
	_, err := ResolveBinary(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("expected ErrCheckerNotFound, got %v", err)
	}
}

func TestResolveBinaryExplicitDirectory(t *testing.T) {
	_, err := ResolveBinary(t.TempDir())
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("a directory must not resolve, got %v", err)
	}
}

func TestResolveBinaryPathLookup(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, DefaultCommand)
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	got, err := ResolveBinary("")
	if err != nil {
		t.Fatalf("ResolveBinary failed: %v", err)
	}
	// The binary bundled next to the test executable would win, but none
	// exists there under go test.
	if got != bin {
		t.Errorf("ResolveBinary = %q, want %q", got, bin)
	}
}

func TestResolveBinaryNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := ResolveBinary("")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("expected ErrCheckerNotFound, got %v", err)
	}
}
