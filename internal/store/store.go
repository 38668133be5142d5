package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store records check runs, their diagnostics, and release pipeline
// outcomes in a local sqlite database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) BeginCheckRun(run *CheckRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO check_runs (id, root, started_at, file_count, error_count, exit_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Root, run.StartedAt.UTC(), run.FileCount, run.ErrorCount, run.ExitStatus)
	if err != nil {
		return fmt.Errorf("insert check run: %w", err)
	}
	return nil
}

func (s *Store) FinishCheckRun(run *CheckRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		UPDATE check_runs
		SET finished_at = ?, file_count = ?, error_count = ?, exit_status = ?
		WHERE id = ?
	`, now, run.FileCount, run.ErrorCount, run.ExitStatus, run.ID)
	if err != nil {
		return fmt.Errorf("finish check run: %w", err)
	}
	return nil
}

func (s *Store) AddDiagnostics(runID string, diags []StoredDiagnostic) error {
	if len(diags) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO diagnostics (run_id, path, line, character, severity, code, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range diags {
		if _, err := stmt.Exec(runID, d.Path, d.Line, d.Character, d.Severity, d.Code, d.Message); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) DiagnosticsForRun(runID string) ([]StoredDiagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT path, line, character, severity, COALESCE(code, ''), message
		FROM diagnostics WHERE run_id = ? ORDER BY path, line, character
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diags []StoredDiagnostic
	for rows.Next() {
		d := StoredDiagnostic{RunID: runID}
		if err := rows.Scan(&d.Path, &d.Line, &d.Character, &d.Severity, &d.Code, &d.Message); err != nil {
			return nil, err
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

func (s *Store) LatestCheckRun(root string) (*CheckRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, root, started_at, finished_at, file_count, error_count, exit_status
		FROM check_runs WHERE root = ? ORDER BY started_at DESC LIMIT 1
	`, root)

	var run CheckRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Root, &run.StartedAt, &finished, &run.FileCount, &run.ErrorCount, &run.ExitStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

func (s *Store) BeginReleaseRun(run *ReleaseRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO release_runs (id, version, started_at, status)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Version, run.StartedAt.UTC(), RunStatusRunning)
	if err != nil {
		return fmt.Errorf("insert release run: %w", err)
	}
	return nil
}

func (s *Store) FinishReleaseRun(runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		UPDATE release_runs SET finished_at = ?, status = ? WHERE id = ?
	`, now, status, runID)
	return err
}

func (s *Store) RecordReleaseJob(job *ReleaseJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO release_jobs (run_id, name, status, detail, finished_at)
		VALUES (?, ?, ?, ?, ?)
	`, job.RunID, job.Name, job.Status, job.Detail, now)
	if err != nil {
		return fmt.Errorf("record release job: %w", err)
	}
	return nil
}

func (s *Store) ReleaseJobsForRun(runID string) ([]ReleaseJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT name, status, COALESCE(detail, ''), finished_at
		FROM release_jobs WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ReleaseJob
	for rows.Next() {
		job := ReleaseJob{RunID: runID}
		var finished sql.NullTime
		if err := rows.Scan(&job.Name, &job.Status, &job.Detail, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			job.FinishedAt = &finished.Time
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
