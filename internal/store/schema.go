package store

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS check_runs (
    id TEXT PRIMARY KEY,
    root TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    file_count INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    exit_status INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS diagnostics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES check_runs(id) ON DELETE CASCADE,
    path TEXT NOT NULL,
    line INTEGER NOT NULL,
    character INTEGER NOT NULL,
    severity INTEGER NOT NULL,
    code TEXT,
    message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_path ON diagnostics(path);

CREATE TABLE IF NOT EXISTS release_runs (
    id TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    status TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS release_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES release_runs(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    detail TEXT,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_release_jobs_run ON release_jobs(run_id);
`
