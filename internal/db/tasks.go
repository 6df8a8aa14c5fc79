package db

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
)

// TaskRecord is one stored allocator result.
type TaskRecord struct {
	TaskID     string           `json:"task_id"`
	RunID      string           `json:"run_id"`
	RobotID    string           `json:"robot_id"`
	Outcome    string           `json:"outcome"`
	HasTarget  bool             `json:"has_target"`
	Target     grid.MapLocation `json:"target"`
	Utility    float64          `json:"utility"`
	Waypoints  int              `json:"waypoints"`
	Candidates int              `json:"candidates"`
	Rejected   int              `json:"rejected"`
	Started    time.Time        `json:"started"`
	Finished   time.Time        `json:"finished"`
}

// TaskStore records allocator results for one run.
type TaskStore struct {
	db    *DB
	runID string
}

// Tasks returns the task store for runID.
func (db *DB) Tasks(runID string) *TaskStore {
	return &TaskStore{db: db, runID: runID}
}

// RecordTask stores one worker result.
func (s *TaskStore) RecordTask(ctx context.Context, r explore.TaskResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (
			task_id, run_id, robot_id, outcome, has_target, target_row, target_col,
			utility, waypoints, candidates, rejected, started_ns, finished_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TaskID, s.runID, r.RobotID, string(r.Outcome), r.HasTarget, r.Target.Row, r.Target.Column,
		r.Utility, r.Waypoints, r.Candidates, r.Rejected, r.Started.UnixNano(), r.Finished.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", r.TaskID, err)
	}
	return nil
}

// ListRecent returns up to limit tasks of this run, most recently finished
// first.
func (s *TaskStore) ListRecent(ctx context.Context, limit int) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, run_id, robot_id, outcome, has_target, target_row, target_col,
			utility, waypoints, candidates, rejected, started_ns, finished_ns
		FROM tasks WHERE run_id = ?
		ORDER BY finished_ns DESC, rowid DESC
		LIMIT ?`,
		s.runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var startedNs, finishedNs int64
		if err := rows.Scan(
			&t.TaskID, &t.RunID, &t.RobotID, &t.Outcome, &t.HasTarget, &t.Target.Row, &t.Target.Column,
			&t.Utility, &t.Waypoints, &t.Candidates, &t.Rejected, &startedNs, &finishedNs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Started = time.Unix(0, startedNs)
		t.Finished = time.Unix(0, finishedNs)
		out = append(out, t)
	}
	return out, rows.Err()
}

// OutcomeCounts tallies this run's tasks by outcome.
func (s *TaskStore) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM tasks WHERE run_id = ? GROUP BY outcome`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
