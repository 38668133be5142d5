package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/alucardeht/typeline/internal/logger"
	"github.com/alucardeht/typeline/internal/store"
	"github.com/alucardeht/typeline/internal/watcher"
)

var log = logger.ForComponent("runner")

// Exit statuses follow the checker's own convention: 0 clean, 1 type
// errors or user error, 3 infrastructure failure.
const (
	ExitSuccess = 0
	ExitErrors  = 1
	ExitInfra   = 3
)

var ErrNoFiles = errors.New("no files matched the project globs")

type Config struct {
	Binary string
	Root   string
	Globs  FilteredGlobs

	// Pass-through flags owned by the checker, never interpreted here.
	SuppressErrors      bool
	RemoveUnusedIgnores bool
	ExtraArgs           []string

	Watcher watcher.WatcherConfig
}

type Result struct {
	RunID      string
	Files      []string
	Errors     []CheckError
	ExitStatus int
	Duration   time.Duration
}

type Runner struct {
	config Config
	store  *store.Store
}

// New builds a runner. The store may be nil, in which case runs are not
// recorded.
func New(config Config, st *store.Store) *Runner {
	return &Runner{config: config, store: st}
}

// Check runs the checker once over the project file set, or over the given
// explicit files when provided.
func (r *Runner) Check(ctx context.Context, files []string) (*Result, error) {
	started := time.Now()

	if len(files) == 0 {
		collected, err := r.config.Globs.Collect()
		if err != nil {
			return nil, fmt.Errorf("collect project files: %w", err)
		}
		files = collected
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	result := &Result{
		RunID: uuid.NewString(),
		Files: files,
	}

	r.beginRun(result, started)

	args := r.buildArgs(files)
	log.Debug("invoking checker", "binary", r.config.Binary, "files", len(files))

	cmd := exec.CommandContext(ctx, r.config.Binary, args...)
	cmd.Dir = r.config.Root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Duration = time.Since(started)
	result.ExitStatus = exitStatus(err)

	if result.ExitStatus == ExitInfra {
		r.finishRun(result)
		return result, fmt.Errorf("checker failed: %s", strOr(stderr.String(), err))
	}

	diags, parseErr := ParseDiagnostics(stdout.Bytes())
	if parseErr != nil {
		if result.ExitStatus != ExitSuccess {
			r.finishRun(result)
			return result, parseErr
		}
		// A clean exit with unparseable output still counts as clean,
		// but silence here would hide a checker output-format change.
		log.Warn("ignoring unparseable checker output on clean exit",
			"run", result.RunID, "error", parseErr)
	}
	result.Errors = diags

	r.finishRun(result)

	log.Info("check finished",
		"run", result.RunID,
		"files", len(files),
		"errors", len(diags),
		"status", result.ExitStatus,
		"duration", result.Duration)

	return result, nil
}

// Watch re-checks debounced batches of changed files until ctx is done.
func (r *Runner) Watch(ctx context.Context) error {
	onBatch := func(events []watcher.FileEvent) {
		var changed []string
		for _, ev := range events {
			if ev.Type == watcher.EventDelete {
				continue
			}
			if r.config.Globs.Matches(ev.Path) {
				changed = append(changed, ev.Path)
			}
		}

		if len(changed) == 0 {
			return
		}

		if _, err := r.Check(ctx, changed); err != nil {
			log.Error("re-check failed", "error", err)
		}
	}

	w, err := watcher.New(r.config.Watcher, onBatch)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := w.AddRoot(r.config.Root); err != nil {
		return fmt.Errorf("watch root: %w", err)
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	// Full pass first, then incremental.
	if _, err := r.Check(ctx, nil); err != nil && !errors.Is(err, ErrNoFiles) {
		log.Error("initial check failed", "error", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (r *Runner) buildArgs(files []string) []string {
	args := []string{"check", "--output-format", "json"}

	if r.config.SuppressErrors {
		args = append(args, "--suppress-errors")
	}
	if r.config.RemoveUnusedIgnores {
		args = append(args, "--remove-unused-ignores")
	}

	args = append(args, r.config.ExtraArgs...)
	args = append(args, files...)
	return args
}

func (r *Runner) beginRun(result *Result, started time.Time) {
	if r.store == nil {
		return
	}

	run := &store.CheckRun{
		ID:        result.RunID,
		Root:      r.config.Root,
		StartedAt: started,
		FileCount: len(result.Files),
	}
	if err := r.store.BeginCheckRun(run); err != nil {
		log.Warn("failed to record check run", "error", err)
	}
}

func (r *Runner) finishRun(result *Result) {
	if r.store == nil {
		return
	}

	run := &store.CheckRun{
		ID:         result.RunID,
		FileCount:  len(result.Files),
		ErrorCount: len(result.Errors),
		ExitStatus: result.ExitStatus,
	}
	if err := r.store.FinishCheckRun(run); err != nil {
		log.Warn("failed to finish check run", "error", err)
	}

	diags := make([]store.StoredDiagnostic, 0, len(result.Errors))
	for _, e := range result.Errors {
		diags = append(diags, store.StoredDiagnostic{
			RunID:     result.RunID,
			Path:      e.Path,
			Line:      e.Line,
			Character: e.Column,
			Severity:  SeverityLevel(e.Severity),
			Code:      e.Code,
			Message:   e.Message,
		})
	}
	if err := r.store.AddDiagnostics(result.RunID, diags); err != nil {
		log.Warn("failed to record diagnostics", "error", err)
	}
}

func exitStatus(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == ExitErrors {
			return ExitErrors
		}
		return ExitInfra
	}
	return ExitInfra
}

func strOr(s string, err error) string {
	if s != "" {
		return s
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}
