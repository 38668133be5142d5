package release

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records every command and can be told to fail on a matching
// argv prefix.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	repoDir string

	failOn string
}

func (f *fakeRunner) Run(ctx context.Context, dir string, argv []string, env []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	f.mu.Unlock()

	if f.failOn != "" && strings.HasPrefix(strings.Join(argv, " "), f.failOn) {
		return errors.New("command failed")
	}

	// Simulate the builder producing an artifact.
	if argv[0] == "build" {
		platform := argv[1]
		dir := filepath.Join(f.repoDir, "dist", strings.ReplaceAll(platform, "/", "-"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "pyrefly"), []byte("bin"), 0755)
	}
	return nil
}

func (f *fakeRunner) indexOf(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, argv := range f.calls {
		if strings.HasPrefix(strings.Join(argv, " "), prefix) {
			return i
		}
	}
	return -1
}

func testOptions(t *testing.T) (Options, *fakeRunner) {
	t.Helper()
	repo := t.TempDir()

	opts := Options{
		Version:        "0.5.0",
		RepoDir:        repo,
		DistDir:        "dist",
		Platforms:      []string{runtime.GOOS + "/" + runtime.GOARCH},
		BuildCommand:   []string{"build", "{platform}", "{output}", "{version}"},
		PublishCommand: []string{"publish", "{dist}", "{version}"},
		PagesBranch:    "gh-pages",
		SiteDir:        "site/build",
	}
	return opts, &fakeRunner{repoDir: repo}
}

func TestNewPipelineRejectsDuplicates(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewPipeline(Job{Name: "a", Run: noop}, Job{Name: "a", Run: noop})
	assert.ErrorIs(t, err, ErrDuplicateJob)
}

func TestNewPipelineRejectsUnknownNeed(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewPipeline(Job{Name: "a", Needs: []string{"ghost"}, Run: noop})
	assert.ErrorIs(t, err, ErrUnknownNeed)
}

func TestNewPipelineRejectsCycle(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewPipeline(
		Job{Name: "a", Needs: []string{"b"}, Run: noop},
		Job{Name: "b", Needs: []string{"a"}, Run: noop},
	)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestExecuteRunsDependenciesFirst(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	p, err := NewPipeline(
		Job{Name: "first", Run: record("first")},
		Job{Name: "second", Needs: []string{"first"}, Run: record("second")},
		Job{Name: "third", Needs: []string{"second"}, Run: record("third")},
	)
	require.NoError(t, err)

	statuses, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	for name, status := range statuses {
		assert.Equal(t, StatusSucceeded, status, name)
	}
}

func TestExecuteSkipsTransitiveDependents(t *testing.T) {
	boom := errors.New("boom")
	noop := func(context.Context) error { return nil }

	p, err := NewPipeline(
		Job{Name: "ok", Run: noop},
		Job{Name: "bad", Run: func(context.Context) error { return boom }},
		Job{Name: "child", Needs: []string{"bad"}, Run: noop},
		Job{Name: "grandchild", Needs: []string{"child"}, Run: noop},
	)
	require.NoError(t, err)

	statuses, err := p.Execute(context.Background(), nil)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, StatusSucceeded, statuses["ok"])
	assert.Equal(t, StatusFailed, statuses["bad"])
	assert.Equal(t, StatusSkipped, statuses["child"])
	assert.Equal(t, StatusSkipped, statuses["grandchild"])
}

func TestExecuteObserverSeesEveryJob(t *testing.T) {
	noop := func(context.Context) error { return nil }
	p, err := NewPipeline(
		Job{Name: "a", Run: noop},
		Job{Name: "b", Needs: []string{"a"}, Run: noop},
	)
	require.NoError(t, err)

	seen := make(map[string]JobStatus)
	var mu sync.Mutex
	_, err = p.Execute(context.Background(), func(name string, status JobStatus, jobErr error) {
		mu.Lock()
		seen[name] = status
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Len(t, seen, 2)
}

func TestPlanFullReleaseHappyPath(t *testing.T) {
	opts, runner := testOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Join(opts.RepoDir, "site", "build"), 0755))

	p, err := Plan(opts, runner)
	require.NoError(t, err)

	statuses, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)

	for name, status := range statuses {
		assert.Equal(t, StatusSucceeded, status, name)
	}

	// Merged artifacts exist.
	_, statErr := os.Stat(filepath.Join(opts.RepoDir, "dist", "merged", "pyrefly"))
	assert.NoError(t, statErr)

	// The smoke test exercised the artifact before anything was published.
	smoke := runner.indexOf(filepath.Join(opts.RepoDir, "dist"))
	publish := runner.indexOf("publish")
	tag := runner.indexOf("git tag")
	require.GreaterOrEqual(t, smoke, 0)
	require.GreaterOrEqual(t, publish, 0)
	require.GreaterOrEqual(t, tag, 0)
	assert.Less(t, smoke, publish)
	assert.Less(t, publish, tag)

	// Placeholders were substituted in the publish command.
	publishArgv := runner.calls[publish]
	assert.Equal(t, []string{"publish", filepath.Join("dist", "merged"), "0.5.0"}, publishArgv)
}

func TestPlanPublishFailureSkipsTag(t *testing.T) {
	opts, runner := testOptions(t)
	runner.failOn = "publish"

	p, err := Plan(opts, runner)
	require.NoError(t, err)

	statuses, err := p.Execute(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, statuses["publish"])
	assert.Equal(t, StatusSkipped, statuses["tag"])
	assert.Equal(t, StatusSkipped, statuses["site"])

	assert.Equal(t, -1, runner.indexOf("git tag"), "tag must never run when publish fails")
}

func TestPlanSmokeTestFailureStopsEverything(t *testing.T) {
	opts, runner := testOptions(t)
	runner.failOn = filepath.Join(opts.RepoDir, "dist")

	p, err := Plan(opts, runner)
	require.NoError(t, err)

	statuses, err := p.Execute(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, statuses["smoketest"])
	assert.Equal(t, StatusSkipped, statuses["merge"])
	assert.Equal(t, StatusSkipped, statuses["publish"])
	assert.Equal(t, StatusSkipped, statuses["tag"])
	assert.Equal(t, -1, runner.indexOf("publish"))
}

func TestExecuteHoldsReleaseLock(t *testing.T) {
	opts, runner := testOptions(t)

	held := NewFlockGuard(filepath.Join(opts.RepoDir, ".typeline-release.lock"))
	require.NoError(t, held.Acquire())
	defer held.Release()

	_, err := Execute(context.Background(), opts, runner, nil)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestSubstitute(t *testing.T) {
	got := substitute([]string{"build", "--target={platform}", "-o", "{output}"}, map[string]string{
		"{platform}": "linux/amd64",
		"{output}":   "dist/linux-amd64",
	})
	assert.Equal(t, []string{"build", "--target=linux/amd64", "-o", "dist/linux-amd64"}, got)
}

func TestHostArtifactMissing(t *testing.T) {
	opts, _ := testOptions(t)
	assert.Equal(t, "", hostArtifact(opts, "plan9/mips"))
}
