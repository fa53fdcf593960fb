package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/prevail/internal/fault"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faults.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(id string, at time.Time) fault.Report {
	return fault.Report{
		ID:        id,
		Component: "journal",
		Message:   "All transaction processing is now blocked.",
		File:      "/data/journal/0000000000000000001.journal",
		Cause:     errors.New("no space left on device"),
		At:        at,
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faults.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faults.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/faults.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "2"}, // FULL
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestSchema_FaultsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "faults")
	for _, col := range []string{"id", "component", "message", "file", "cause", "reported_at"} {
		if !contains(columns, col) {
			t.Errorf("faults table missing column %q", col)
		}
	}

	indexes := getTableIndexes(t, s.db, "faults")
	if !contains(indexes, "idx_faults_reported_at") {
		t.Error("faults table missing index idx_faults_reported_at")
	}
}

func TestNotify_RecordsReport(t *testing.T) {
	s := createTestStore(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	var m fault.Monitor = s
	m.Notify(testReport("0190c0de-0000-7000-8000-000000000001", at))

	faults, err := s.ListFaults(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListFaults() failed: %v", err)
	}
	if len(faults) != 1 {
		t.Fatalf("got %d faults, want 1", len(faults))
	}

	got := faults[0]
	if got.Component != "journal" || got.File != "/data/journal/0000000000000000001.journal" {
		t.Errorf("unexpected fault %+v", got)
	}
	if got.Cause == nil || got.Cause.Error() != "no space left on device" {
		t.Errorf("cause = %v, want %q", got.Cause, "no space left on device")
	}
	if !got.At.Equal(at) {
		t.Errorf("At = %v, want %v", got.At, at)
	}
}

func TestRecordFault_DuplicateIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := testReport("0190c0de-0000-7000-8000-000000000001", time.Now())

	for i := 0; i < 2; i++ {
		if err := s.RecordFault(ctx, r); err != nil {
			t.Fatalf("RecordFault() #%d failed: %v", i, err)
		}
	}

	faults, err := s.ListFaults(ctx, 0)
	if err != nil {
		t.Fatalf("ListFaults() failed: %v", err)
	}
	if len(faults) != 1 {
		t.Errorf("got %d faults, want 1", len(faults))
	}
}

func TestRecordFault_NilCause(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := testReport("0190c0de-0000-7000-8000-000000000001", time.Now())
	r.Cause = nil

	if err := s.RecordFault(ctx, r); err != nil {
		t.Fatalf("RecordFault() failed: %v", err)
	}
	faults, err := s.ListFaults(ctx, 0)
	if err != nil {
		t.Fatalf("ListFaults() failed: %v", err)
	}
	if faults[0].Cause != nil {
		t.Errorf("cause = %v, want nil", faults[0].Cause)
	}
}

func TestListFaults_NewestFirstWithLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := []string{
		"0190c0de-0000-7000-8000-000000000001",
		"0190c0de-0000-7000-8000-000000000002",
		"0190c0de-0000-7000-8000-000000000003",
	}
	for i, id := range ids {
		if err := s.RecordFault(ctx, testReport(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordFault() failed: %v", err)
		}
	}

	faults, err := s.ListFaults(ctx, 2)
	if err != nil {
		t.Fatalf("ListFaults() failed: %v", err)
	}
	if len(faults) != 2 {
		t.Fatalf("got %d faults, want 2", len(faults))
	}
	if faults[0].ID != ids[2] || faults[1].ID != ids[1] {
		t.Errorf("order = [%s %s], want [%s %s]", faults[0].ID, faults[1].ID, ids[2], ids[1])
	}
}

func TestListFaults_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	faults, err := s.ListFaults(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListFaults() failed: %v", err)
	}
	if faults == nil {
		t.Error("ListFaults() returned nil, want empty slice")
	}
}

func TestNotify_ClosedStoreDoesNotPanic(t *testing.T) {
	s := createTestStore(t)
	s.Close()

	s.Notify(fault.NewReport("journal", "blocked", "", errors.New("boom")))
}

func TestStore_ReceivesJournalFaultsThroughMulti(t *testing.T) {
	s := createTestStore(t)
	rec := &fault.Recorder{}

	fault.Multi{rec, s}.Notify(fault.NewReport("snapshot", "write failed", "x.snapshot", nil))

	faults, err := s.ListFaults(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListFaults() failed: %v", err)
	}
	if len(faults) != 1 || len(rec.Reports()) != 1 {
		t.Fatalf("store has %d faults, recorder has %d; want 1 each", len(faults), len(rec.Reports()))
	}
	if faults[0].ID != rec.Reports()[0].ID {
		t.Errorf("IDs differ: %s vs %s", faults[0].ID, rec.Reports()[0].ID)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
