package store

import "time"

type CheckRun struct {
	ID         string     `json:"id"`
	Root       string     `json:"root"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	FileCount  int        `json:"file_count"`
	ErrorCount int        `json:"error_count"`
	ExitStatus int        `json:"exit_status"`
}

type StoredDiagnostic struct {
	RunID     string `json:"run_id"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
	Severity  int    `json:"severity"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

type ReleaseRun struct {
	ID         string     `json:"id"`
	Version    string     `json:"version"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
}

type ReleaseJob struct {
	RunID      string     `json:"run_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"

	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusSkipped   = "skipped"
)
