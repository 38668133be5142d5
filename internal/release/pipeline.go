package release

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alucardeht/typeline/internal/logger"
)

var log = logger.ForComponent("release")

var (
	ErrDuplicateJob = errors.New("duplicate job name")
	ErrUnknownNeed  = errors.New("job depends on unknown job")
	ErrCycle        = errors.New("job graph has a cycle")
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusSkipped   JobStatus = "skipped"
)

type Job struct {
	Name  string
	Needs []string
	Run   func(ctx context.Context) error
}

// Pipeline is a fixed DAG of jobs. A job runs only after every job it
// needs has succeeded; a failure anywhere marks all transitive dependents
// skipped. There is no retry and no partial recovery, matching the
// all-or-nothing semantics of the CI workflows this replaces.
type Pipeline struct {
	jobs   []Job
	byName map[string]int
}

func NewPipeline(jobs ...Job) (*Pipeline, error) {
	byName := make(map[string]int, len(jobs))
	for i, job := range jobs {
		if _, exists := byName[job.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
		}
		byName[job.Name] = i
	}

	for _, job := range jobs {
		for _, need := range job.Needs {
			if _, ok := byName[need]; !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrUnknownNeed, job.Name, need)
			}
		}
	}

	p := &Pipeline{jobs: jobs, byName: byName}
	if p.hasCycle() {
		return nil, ErrCycle
	}
	return p, nil
}

// Jobs returns the plan in declaration order.
func (p *Pipeline) Jobs() []Job {
	return p.jobs
}

func (p *Pipeline) hasCycle() bool {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	marks := make([]int, len(p.jobs))

	var visit func(int) bool
	visit = func(i int) bool {
		switch marks[i] {
		case visiting:
			return true
		case done:
			return false
		}
		marks[i] = visiting
		for _, need := range p.jobs[i].Needs {
			if visit(p.byName[need]) {
				return true
			}
		}
		marks[i] = done
		return false
	}

	for i := range p.jobs {
		if visit(i) {
			return true
		}
	}
	return false
}

// Observer is notified as each job settles.
type Observer func(name string, status JobStatus, err error)

// Execute runs the pipeline. Jobs whose dependencies are all satisfied run
// concurrently in waves. The returned map holds settled statuses for every
// job; the error is the first job failure, if any.
func (p *Pipeline) Execute(ctx context.Context, observe Observer) (map[string]JobStatus, error) {
	statuses := make(map[string]JobStatus, len(p.jobs))
	for _, job := range p.jobs {
		statuses[job.Name] = StatusPending
	}

	var (
		mu       sync.Mutex
		firstErr error
	)

	settle := func(name string, status JobStatus, err error) {
		mu.Lock()
		statuses[name] = status
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("job %s: %w", name, err)
		}
		mu.Unlock()

		if observe != nil {
			observe(name, status, err)
		}
	}

	for {
		ready, pendingLeft := p.nextWave(statuses, &mu)
		if len(ready) == 0 {
			if !pendingLeft {
				break
			}
			// Remaining pending jobs all have failed or skipped needs.
			for _, job := range p.jobs {
				mu.Lock()
				pending := statuses[job.Name] == StatusPending
				mu.Unlock()
				if pending {
					settle(job.Name, StatusSkipped, nil)
				}
			}
			break
		}

		var wg sync.WaitGroup
		for _, idx := range ready {
			job := p.jobs[idx]
			wg.Add(1)
			go func() {
				defer wg.Done()

				if ctx.Err() != nil {
					settle(job.Name, StatusSkipped, nil)
					return
				}

				log.Info("job started", "job", job.Name)
				if err := job.Run(ctx); err != nil {
					log.Error("job failed", "job", job.Name, "error", err)
					settle(job.Name, StatusFailed, err)
					return
				}
				log.Info("job succeeded", "job", job.Name)
				settle(job.Name, StatusSucceeded, nil)
			}()
		}
		wg.Wait()
	}

	return statuses, firstErr
}

// nextWave returns pending jobs whose needs all succeeded, plus whether any
// runnable pending work could still appear.
func (p *Pipeline) nextWave(statuses map[string]JobStatus, mu *sync.Mutex) ([]int, bool) {
	mu.Lock()
	defer mu.Unlock()

	var ready []int
	pendingLeft := false

	for i, job := range p.jobs {
		if statuses[job.Name] != StatusPending {
			continue
		}
		pendingLeft = true

		runnable := true
		for _, need := range job.Needs {
			if statuses[need] != StatusSucceeded {
				runnable = false
				break
			}
		}
		// A pending dependency means wait; a failed or skipped one means
		// this job can never run.
		blocked := false
		for _, need := range job.Needs {
			if statuses[need] == StatusFailed || statuses[need] == StatusSkipped {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		if runnable {
			ready = append(ready, i)
		}
	}

	return ready, pendingLeft
}
