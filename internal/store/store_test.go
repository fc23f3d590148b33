package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkornelli/tempora/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	// Create
	run, err := s.CreateRun("backup", "/opt/scripts/backup.sh")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.ID == "" {
		t.Error("Run ID should not be empty")
	}
	if run.Status != models.RunQueued {
		t.Errorf("Expected status queued, got %s", run.Status)
	}

	// Get
	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected run, got nil")
	}
	if got.Script != "backup" || got.Path != "/opt/scripts/backup.sh" {
		t.Errorf("Unexpected run fields: %s %s", got.Script, got.Path)
	}
	if got.StartedAt != nil || got.EndedAt != nil || got.ExitCode != nil {
		t.Error("Fresh run should have no start, end, or exit code")
	}

	// Start
	started := time.Now().UTC()
	err = s.MarkRunStarted(run.ID, "/tmp/out.log", "/tmp/err.log", started)
	if err != nil {
		t.Fatalf("MarkRunStarted failed: %v", err)
	}

	got, _ = s.GetRun(run.ID)
	if got.Status != models.RunRunning {
		t.Errorf("Expected status running, got %s", got.Status)
	}
	if got.StdoutPath != "/tmp/out.log" || got.StderrPath != "/tmp/err.log" {
		t.Errorf("Unexpected sink paths: %s %s", got.StdoutPath, got.StderrPath)
	}
	if got.StartedAt == nil {
		t.Error("Expected started_at to be set")
	}

	// Finish
	code := 0
	err = s.FinishRun(run.ID, models.RunFinished, &code, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, _ = s.GetRun(run.ID)
	if got.Status != models.RunFinished {
		t.Errorf("Expected status finished, got %s", got.Status)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Error("Expected exit code 0")
	}
	if got.EndedAt == nil {
		t.Error("Expected ended_at to be set")
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, err := s.GetRun("does-not-exist")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run != nil {
		t.Error("Expected nil for missing run")
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	for i := 0; i < 5; i++ {
		if _, err := s.CreateRun(fmt.Sprintf("script-%d", i), "/tmp/s.sh"); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns("", 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 5 {
		t.Errorf("Expected 5 runs, got %d", len(runs))
	}

	// Limit
	runs, err = s.ListRuns("", 2)
	if err != nil {
		t.Fatalf("ListRuns with limit failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}

	// Filter
	runs, err = s.ListRuns("finished", 0)
	if err != nil {
		t.Fatalf("ListRuns with filter failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected 0 finished runs, got %d", len(runs))
	}

	runs, err = s.ListRuns("queued", 0)
	if err != nil {
		t.Fatalf("ListRuns with filter failed: %v", err)
	}
	if len(runs) != 5 {
		t.Errorf("Expected 5 queued runs, got %d", len(runs))
	}
}

func TestNextQueued(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	// Empty queue
	run, err := s.NextQueued()
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if run != nil {
		t.Error("Expected nil on empty queue")
	}

	first, _ := s.CreateRun("first", "/tmp/a.sh")
	time.Sleep(5 * time.Millisecond)
	s.CreateRun("second", "/tmp/b.sh")

	run, err = s.NextQueued()
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if run == nil || run.ID != first.ID {
		t.Errorf("Expected oldest run %s first", first.ID)
	}

	// Claiming removes it from the queue
	if err := s.MarkRunStarted(run.ID, "", "", time.Now().UTC()); err != nil {
		t.Fatalf("MarkRunStarted failed: %v", err)
	}
	run, _ = s.NextQueued()
	if run == nil || run.Script != "second" {
		t.Error("Expected second run next")
	}
}

func TestMarkRunStarted_NotClaimable(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, _ := s.CreateRun("once", "/tmp/s.sh")
	if err := s.MarkRunStarted(run.ID, "", "", time.Now().UTC()); err != nil {
		t.Fatalf("MarkRunStarted failed: %v", err)
	}

	err := s.MarkRunStarted(run.ID, "", "", time.Now().UTC())
	if !errors.Is(err, ErrRunNotClaimable) {
		t.Errorf("Expected ErrRunNotClaimable, got %v", err)
	}
}

func TestCancelQueued(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, _ := s.CreateRun("cancel-me", "/tmp/s.sh")
	if err := s.CancelQueued(run.ID, time.Now().UTC()); err != nil {
		t.Fatalf("CancelQueued failed: %v", err)
	}

	got, _ := s.GetRun(run.ID)
	if got.Status != models.RunKilled {
		t.Errorf("Expected status killed, got %s", got.Status)
	}

	// Already canceled
	err := s.CancelQueued(run.ID, time.Now().UTC())
	if !errors.Is(err, ErrRunNotQueued) {
		t.Errorf("Expected ErrRunNotQueued, got %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	s.CreateRun("a", "/tmp/a.sh")
	s.CreateRun("b", "/tmp/b.sh")

	count, err := s.CountByStatus(models.RunQueued)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 queued runs, got %d", count)
	}
}

func TestPruneRuns(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	code := 0
	var keepID string
	for i := 0; i < 5; i++ {
		run, _ := s.CreateRun(fmt.Sprintf("old-%d", i), "/tmp/s.sh")
		if err := s.FinishRun(run.ID, models.RunFinished, &code, "", time.Now().UTC()); err != nil {
			t.Fatalf("FinishRun failed: %v", err)
		}
		if _, err := s.WriteEvent(run.ID, "run.finish", "hash", "finished", ""); err != nil {
			t.Fatalf("WriteEvent failed: %v", err)
		}
		keepID = run.ID
		time.Sleep(5 * time.Millisecond)
	}
	// A queued run is never pruned
	queued, _ := s.CreateRun("pending", "/tmp/s.sh")

	removed, err := s.PruneRuns(2)
	if err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 runs pruned, got %d", removed)
	}

	runs, _ := s.ListRuns("", 0)
	if len(runs) != 3 {
		t.Errorf("Expected 3 runs left, got %d", len(runs))
	}

	got, _ := s.GetRun(queued.ID)
	if got == nil {
		t.Error("Queued run should survive pruning")
	}
	got, _ = s.GetRun(keepID)
	if got == nil {
		t.Error("Newest finished run should survive pruning")
	}
}

func TestEvents(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, _ := s.CreateRun("audited", "/tmp/s.sh")

	event, err := s.WriteEvent(run.ID, "run.submit", "abc123", "success", "")
	if err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}

	// Events without a run reference are allowed
	if _, err := s.WriteEvent("", "week.set", "def456", "success", "monday 09:00-12:00"); err != nil {
		t.Fatalf("WriteEvent without run failed: %v", err)
	}

	events, err := s.ListEventsForRun(run.ID)
	if err != nil {
		t.Fatalf("ListEventsForRun failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Action != "run.submit" || events[0].InputsHash != "abc123" {
		t.Errorf("Unexpected event: %+v", events[0])
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return s
}
