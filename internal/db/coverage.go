package db

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/swarm.map/internal/mapping"
)

// CoverageStore records maintenance samples for one run.
type CoverageStore struct {
	db    *DB
	runID string
}

// Coverage returns the coverage store for runID.
func (db *DB) Coverage(runID string) *CoverageStore {
	return &CoverageStore{db: db, runID: runID}
}

// RecordCoverage stores one sample.
func (s *CoverageStore) RecordCoverage(ctx context.Context, c mapping.CoverageSample) error {
	st := c.Stats
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coverage_samples (
			run_id, taken_ns, top_row, bottom_row, left_col, right_col,
			cells, unexplored, free, occupied, restricted, weakly_restricted,
			frontier, cleaned
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, c.Taken.UnixNano(), st.Bounds.TopRow, st.Bounds.BottomRow, st.Bounds.LeftColumn, st.Bounds.RightColumn,
		st.Cells, st.Unexplored, st.Free, st.Occupied, st.Restricted, st.WeaklyRestricted,
		c.Frontier, c.Cleaned,
	)
	if err != nil {
		return fmt.Errorf("failed to insert coverage sample: %w", err)
	}
	return nil
}

// List returns the latest limit samples of this run, oldest first.
func (s *CoverageStore) List(ctx context.Context, limit int) ([]mapping.CoverageSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT taken_ns, top_row, bottom_row, left_col, right_col,
			cells, unexplored, free, occupied, restricted, weakly_restricted,
			frontier, cleaned
		FROM coverage_samples WHERE run_id = ?
		ORDER BY taken_ns DESC, rowid DESC
		LIMIT ?`,
		s.runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	defer rows.Close()

	var out []mapping.CoverageSample
	for rows.Next() {
		var c mapping.CoverageSample
		var takenNs int64
		st := &c.Stats
		if err := rows.Scan(
			&takenNs, &st.Bounds.TopRow, &st.Bounds.BottomRow, &st.Bounds.LeftColumn, &st.Bounds.RightColumn,
			&st.Cells, &st.Unexplored, &st.Free, &st.Occupied, &st.Restricted, &st.WeaklyRestricted,
			&c.Frontier, &c.Cleaned,
		); err != nil {
			return nil, fmt.Errorf("failed to scan coverage sample: %w", err)
		}
		c.Taken = time.Unix(0, takenNs)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
