package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// JobHistory is a local, append-only audit log of dispatched prints, modeled
// on the teacher's print_history table and LogPrintUsage/GetPrintErrors
// accessor pair (bridge.go). It is diagnostic only: nothing is ever read back
// and redispatched from it, so it does not reintroduce the persistent job
// queue spec.md §1 rules out of scope (SPEC_FULL.md §C).
type JobHistory struct {
	db *sql.DB
}

// NewJobHistory opens (creating if needed) the sqlite-backed history file.
func NewJobHistory(path string) (*JobHistory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job history database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS recent_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transport TEXT NOT NULL,
		target TEXT NOT NULL,
		ok INTEGER NOT NULL,
		error TEXT,
		at DATETIME NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize job history schema: %w", err)
	}

	return &JobHistory{db: db}, nil
}

// Record appends one dispatch outcome. Failures to record are logged by the
// caller, never fatal — diagnostics must not affect printing.
func (h *JobHistory) Record(transport, target string, ok bool, errMsg string) error {
	_, err := h.db.Exec(
		`INSERT INTO recent_jobs (transport, target, ok, error, at) VALUES (?, ?, ?, ?, ?)`,
		transport, target, boolToInt(ok), errMsg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record job history: %w", err)
	}
	return nil
}

// Recent returns up to limit most-recent entries, newest first.
func (h *JobHistory) Recent(limit int) ([]RecentJob, error) {
	if limit <= 0 {
		limit = DefaultRecentJobsCap
	}
	if limit > MaxRecentJobsCap {
		limit = MaxRecentJobsCap
	}

	rows, err := h.db.Query(
		`SELECT id, transport, target, ok, error, at FROM recent_jobs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var jobs []RecentJob
	for rows.Next() {
		var j RecentJob
		var ok int
		var errMsg sql.NullString
		if err := rows.Scan(&j.ID, &j.Transport, &j.Target, &ok, &errMsg, &j.At); err != nil {
			return nil, fmt.Errorf("failed to scan job history row: %w", err)
		}
		j.OK = ok != 0
		j.Error = errMsg.String
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (h *JobHistory) Close() error {
	return h.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
