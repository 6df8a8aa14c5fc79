// Package db stores the run log of a mapping session: which tasks were
// handed out and how coverage grew. The map itself lives in memory only.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// pragmas applied to every connection.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the SQLite database at path and migrates it to
// the latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Run is one mapping session.
type Run struct {
	ID         string    `json:"run_id"`
	Started    time.Time `json:"started"`
	ConfigJSON string    `json:"config"`
}

// StartRun records a new session and returns it.
func (db *DB) StartRun(ctx context.Context, started time.Time, configJSON string) (*Run, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	run := &Run{ID: uuid.NewString(), Started: started, ConfigJSON: configJSON}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_ns, config_json) VALUES (?, ?, ?)`,
		run.ID, started.UnixNano(), configJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// Runs lists every recorded session, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT run_id, started_ns, config_json FROM runs ORDER BY started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedNs int64
		if err := rows.Scan(&r.ID, &startedNs, &r.ConfigJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Started = time.Unix(0, startedNs)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
