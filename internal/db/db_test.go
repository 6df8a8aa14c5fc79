package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/mapping"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRun(t *testing.T, db *DB) *Run {
	t.Helper()
	run, err := db.StartRun(context.Background(), time.Unix(100, 0), `{"cell_size":2}`)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	return run
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	return n > 0
}

func TestNewDBMigratesToLatest(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("MigrateVersion() = %d, dirty=%v; want 2, false", version, dirty)
	}
	for _, table := range []string{"runs", "tasks", "coverage_samples"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if version, _, _ := db.MigrateVersion(); version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}
	if tableExists(t, db, "coverage_samples") {
		t.Error("coverage_samples should be dropped")
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if !tableExists(t, db, "coverage_samples") {
		t.Error("coverage_samples should be restored")
	}
	if err := db.MigrateUp(); err != nil {
		t.Errorf("MigrateUp at latest should be a no-op, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	run, err := db.StartRun(context.Background(), time.Unix(5, 0), "")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	db.Close()

	db, err = NewDB(path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()
	runs, err := db.Runs(context.Background())
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID || runs[0].ConfigJSON != "{}" {
		t.Errorf("Runs() = %+v, want the run started before reopening", runs)
	}
}

func TestRunsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first, _ := db.StartRun(ctx, time.Unix(1, 0), "")
	second, _ := db.StartRun(ctx, time.Unix(2, 0), "")

	runs, err := db.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Errorf("Runs() order wrong: %+v", runs)
	}
	if !runs[1].Started.Equal(time.Unix(1, 0)) {
		t.Errorf("Started = %v, want %v", runs[1].Started, time.Unix(1, 0))
	}
}

func taskResult(id string, finished int64, outcome explore.Outcome) explore.TaskResult {
	return explore.TaskResult{
		TaskID:     id,
		RobotID:    "r1",
		Outcome:    outcome,
		Target:     grid.Loc(-3, 12),
		HasTarget:  outcome == explore.OutcomeAssigned,
		Utility:    412.5,
		Waypoints:  3,
		Candidates: 20,
		Rejected:   1,
		Started:    time.Unix(0, finished-1000),
		Finished:   time.Unix(0, finished),
	}
}

func TestTaskStore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	run := newTestRun(t, db)
	other := newTestRun(t, db)
	store := db.Tasks(run.ID)

	for i, res := range []explore.TaskResult{
		taskResult("t1", 1000, explore.OutcomeAssigned),
		taskResult("t2", 3000, explore.OutcomeUnreachable),
		taskResult("t3", 2000, explore.OutcomeAssigned),
	} {
		if err := store.RecordTask(ctx, res); err != nil {
			t.Fatalf("RecordTask %d failed: %v", i, err)
		}
	}
	if err := db.Tasks(other.ID).RecordTask(ctx, taskResult("x1", 9000, explore.OutcomeNoTarget)); err != nil {
		t.Fatalf("RecordTask for other run failed: %v", err)
	}

	got, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	want := []TaskRecord{
		{
			TaskID: "t2", RunID: run.ID, RobotID: "r1", Outcome: "unreachable",
			Target: grid.Loc(-3, 12), Utility: 412.5, Waypoints: 3, Candidates: 20, Rejected: 1,
			Started: time.Unix(0, 2000), Finished: time.Unix(0, 3000),
		},
		{
			TaskID: "t3", RunID: run.ID, RobotID: "r1", Outcome: "assigned", HasTarget: true,
			Target: grid.Loc(-3, 12), Utility: 412.5, Waypoints: 3, Candidates: 20, Rejected: 1,
			Started: time.Unix(0, 1000), Finished: time.Unix(0, 2000),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListRecent mismatch (-want +got):\n%s", diff)
	}

	counts, err := store.OutcomeCounts(ctx)
	if err != nil {
		t.Fatalf("OutcomeCounts failed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"assigned": 2, "unreachable": 1}, counts); diff != "" {
		t.Errorf("OutcomeCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskStoreRejectsUnknownRun(t *testing.T) {
	db := newTestDB(t)
	err := db.Tasks("no-such-run").RecordTask(context.Background(), taskResult("t1", 1, explore.OutcomeAssigned))
	if err == nil {
		t.Error("RecordTask for an unknown run should fail the foreign key")
	}
}

func TestTaskStoreImplementsRecorder(t *testing.T) {
	var _ explore.TaskRecorder = (*TaskStore)(nil)
	var _ mapping.CoverageRecorder = (*CoverageStore)(nil)
}

func TestCoverageStore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	run := newTestRun(t, db)
	store := db.Coverage(run.ID)

	var samples []mapping.CoverageSample
	for i := 0; i < 4; i++ {
		s := mapping.CoverageSample{
			Taken: time.Unix(10+int64(i), 0),
			Stats: grid.Stats{
				Bounds:           grid.Bounds{TopRow: 49 + i, BottomRow: -i, LeftColumn: 0, RightColumn: 49},
				Cells:            2500 + 50*i,
				Unexplored:       2000 - 100*i,
				Free:             400 + 100*i,
				Occupied:         100 + 50*i,
				Restricted:       300,
				WeaklyRestricted: 600,
			},
			Frontier: 30 + i,
			Cleaned:  i,
		}
		samples = append(samples, s)
		if err := store.RecordCoverage(ctx, s); err != nil {
			t.Fatalf("RecordCoverage failed: %v", err)
		}
	}

	got, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff(samples[1:], got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	empty, err := db.Coverage("other").List(ctx, 10)
	if err != nil {
		t.Fatalf("List for empty run failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List for empty run = %v", empty)
	}
}

func debugRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	newTestRun(t, db)
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	for _, path := range []string{"/debug/tailsql/", "/debug/backup"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, debugRequest(path))
		if w.Code == http.StatusNotFound {
			t.Errorf("Route %s should be registered, got 404", path)
		}
	}
}

func TestBackupIsGzippedSQLite(t *testing.T) {
	db := newTestDB(t)
	newTestRun(t, db)
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, debugRequest("/debug/backup"))
	if w.Code != http.StatusOK {
		t.Fatalf("backup status = %d, body %q", w.Code, w.Body.String())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3\x00")) {
		t.Errorf("backup does not look like a SQLite file: %q", data[:min(len(data), 16)])
	}
}
