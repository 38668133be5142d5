package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alucardeht/typeline/internal/store"
)

// CommandRunner executes one external command. Tests substitute a fake so
// the job graph can be exercised without git, builders, or uploaders.
type CommandRunner interface {
	Run(ctx context.Context, dir string, argv []string, env []string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, argv []string, env []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func NewExecRunner() CommandRunner {
	return execRunner{}
}

type Options struct {
	Version   string
	RepoDir   string
	DistDir   string
	Platforms []string

	// BuildCommand builds one platform artifact; {platform}, {output} and
	// {version} placeholders are substituted per job.
	BuildCommand []string

	// PublishCommand uploads the merged artifacts. Trusted publishing
	// means the command authenticates via identity federation; no token
	// ever passes through here.
	PublishCommand []string

	PagesBranch string
	SiteDir     string
}

// Plan assembles the fixed release DAG:
//
//	build-* -> smoketest -> merge -> publish -> tag
//	                                 publish -> site
//
// The tag job needing publish is the invariant that a version tag never
// references an unpublished release.
func Plan(opts Options, runner CommandRunner) (*Pipeline, error) {
	if runner == nil {
		runner = NewExecRunner()
	}

	var jobs []Job
	var buildNames []string

	for _, platform := range opts.Platforms {
		name := "build-" + strings.ReplaceAll(platform, "/", "-")
		buildNames = append(buildNames, name)

		jobs = append(jobs, Job{
			Name: name,
			Run:  buildJob(opts, runner, platform),
		})
	}

	jobs = append(jobs,
		Job{
			Name:  "smoketest",
			Needs: buildNames,
			Run:   smokeTestJob(opts, runner),
		},
		Job{
			Name:  "merge",
			Needs: []string{"smoketest"},
			Run:   mergeJob(opts),
		},
		Job{
			Name:  "publish",
			Needs: []string{"merge"},
			Run:   publishJob(opts, runner),
		},
		Job{
			Name:  "tag",
			Needs: []string{"publish"},
			Run:   tagJob(opts, runner),
		},
		Job{
			Name:  "site",
			Needs: []string{"publish"},
			Run:   siteDeployJob(opts, runner),
		},
	)

	return NewPipeline(jobs...)
}

func buildJob(opts Options, runner CommandRunner, platform string) func(context.Context) error {
	return func(ctx context.Context) error {
		outDir := filepath.Join(opts.DistDir, strings.ReplaceAll(platform, "/", "-"))
		if err := os.MkdirAll(filepath.Join(opts.RepoDir, outDir), 0755); err != nil {
			return err
		}

		argv := substitute(opts.BuildCommand, map[string]string{
			"{platform}": platform,
			"{output}":   outDir,
			"{version}":  opts.Version,
		})
		if len(argv) == 0 {
			return fmt.Errorf("no build command configured")
		}

		return runner.Run(ctx, opts.RepoDir, argv, []string{"RELEASE_PLATFORM=" + platform})
	}
}

// smokeTestJob runs the host-matching artifact with --help; a binary that
// cannot print its own usage has no business being published.
func smokeTestJob(opts Options, runner CommandRunner) func(context.Context) error {
	return func(ctx context.Context) error {
		platform := runtime.GOOS + "/" + runtime.GOARCH
		artifact := hostArtifact(opts, platform)
		if artifact == "" {
			return fmt.Errorf("no artifact built for host platform %s", platform)
		}

		return runner.Run(ctx, opts.RepoDir, []string{artifact, "--help"}, nil)
	}
}

func hostArtifact(opts Options, platform string) string {
	dir := filepath.Join(opts.RepoDir, opts.DistDir, strings.ReplaceAll(platform, "/", "-"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}

// mergeJob flattens per-platform artifact directories into dist/merged.
func mergeJob(opts Options) func(context.Context) error {
	return func(ctx context.Context) error {
		merged := filepath.Join(opts.RepoDir, opts.DistDir, "merged")
		if err := os.MkdirAll(merged, 0755); err != nil {
			return err
		}

		for _, platform := range opts.Platforms {
			dir := filepath.Join(opts.RepoDir, opts.DistDir, strings.ReplaceAll(platform, "/", "-"))
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("read artifacts for %s: %w", platform, err)
			}

			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				src := filepath.Join(dir, entry.Name())
				dst := filepath.Join(merged, entry.Name())
				if err := copyFile(src, dst); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func publishJob(opts Options, runner CommandRunner) func(context.Context) error {
	return func(ctx context.Context) error {
		argv := substitute(opts.PublishCommand, map[string]string{
			"{version}": opts.Version,
			"{dist}":    filepath.Join(opts.DistDir, "merged"),
		})
		if len(argv) == 0 {
			return fmt.Errorf("no publish command configured")
		}

		return runner.Run(ctx, opts.RepoDir, argv, nil)
	}
}

func tagJob(opts Options, runner CommandRunner) func(context.Context) error {
	return func(ctx context.Context) error {
		tag := TagName(opts.Version)

		if err := runner.Run(ctx, opts.RepoDir, []string{"git", "tag", "-a", tag, "-m", "Release " + tag}, nil); err != nil {
			return fmt.Errorf("create tag: %w", err)
		}
		if err := runner.Run(ctx, opts.RepoDir, []string{"git", "push", "origin", tag}, nil); err != nil {
			return fmt.Errorf("push tag: %w", err)
		}
		return nil
	}
}

// siteDeployJob publishes the built site directory verbatim to the pages
// branch.
func siteDeployJob(opts Options, runner CommandRunner) func(context.Context) error {
	return func(ctx context.Context) error {
		if opts.SiteDir == "" || opts.PagesBranch == "" {
			return nil
		}

		for _, argv := range [][]string{
			{"git", "add", "-f", opts.SiteDir},
			{"git", "commit", "-m", "Deploy site for " + TagName(opts.Version)},
			{"git", "push", "origin", "HEAD:" + opts.PagesBranch, "--force"},
		} {
			if err := runner.Run(ctx, opts.RepoDir, argv, nil); err != nil {
				return fmt.Errorf("site deploy: %w", err)
			}
		}
		return nil
	}
}

func substitute(argv []string, repl map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for k, v := range repl {
			arg = strings.ReplaceAll(arg, k, v)
		}
		out[i] = arg
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Execute runs the plan under the release lock, recording the run and each
// job outcome in the store when one is provided.
func Execute(ctx context.Context, opts Options, runner CommandRunner, st *store.Store) (map[string]JobStatus, error) {
	lock := NewFlockGuard(filepath.Join(opts.RepoDir, ".typeline-release.lock"))
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	pipeline, err := Plan(opts, runner)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if st != nil {
		st.BeginReleaseRun(&store.ReleaseRun{
			ID:        runID,
			Version:   opts.Version,
			StartedAt: time.Now(),
		})
	}

	observe := func(name string, status JobStatus, jobErr error) {
		if st == nil {
			return
		}
		detail := ""
		if jobErr != nil {
			detail = jobErr.Error()
		}
		st.RecordReleaseJob(&store.ReleaseJob{
			RunID:  runID,
			Name:   name,
			Status: string(status),
			Detail: detail,
		})
	}

	statuses, err := pipeline.Execute(ctx, observe)

	if st != nil {
		runStatus := store.RunStatusSucceeded
		if err != nil {
			runStatus = store.RunStatusFailed
		}
		st.FinishReleaseRun(runID, runStatus)
	}

	return statuses, err
}
