package task

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeScript drops an executable script into a temp dir.
func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

// waitTerminal polls the task until it leaves the running state.
func waitTerminal(t *testing.T, st *ScriptTask) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := st.Status()
		if status.Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for task to finish")
	return Status{}
}

func TestNewScriptTask_Missing(t *testing.T) {
	_, err := NewScriptTask(filepath.Join(t.TempDir(), "nope.sh"))
	if !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("Expected ErrScriptNotFound, got %v", err)
	}
}

func TestNewScriptTask_NotRegularFile(t *testing.T) {
	_, err := NewScriptTask(t.TempDir())
	if !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("Expected ErrNotRegularFile, got %v", err)
	}
}

func TestNewScriptTask_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.sh")
	if err := os.WriteFile(path, []byte("#!/bin/bash\necho hi\n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := NewScriptTask(path)
	if !errors.Is(err, ErrNotExecutable) {
		t.Errorf("Expected ErrNotExecutable, got %v", err)
	}
}

func TestScriptTask_CountsToTen(t *testing.T) {
	path := writeScript(t, "count.sh", "#!/bin/bash\nfor i in $(seq 1 10); do echo $i; done\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}

	if got := st.Status(); got.State != StateWaiting {
		t.Errorf("Expected waiting before start, got %s", got.State)
	}

	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitTerminal(t, st)
	if status.State != StateFinished {
		t.Fatalf("Expected finished, got %s", status)
	}

	want := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	if stdout.String() != want {
		t.Errorf("Unexpected stdout:\n%q\nwant:\n%q", stdout.String(), want)
	}
	if stderr.Len() != 0 {
		t.Errorf("Expected empty stderr, got %q", stderr.String())
	}

	code, ok := st.ExitCode()
	if !ok || code != 0 {
		t.Errorf("Expected exit code 0, got %d (ok=%v)", code, ok)
	}
}

func TestScriptTask_InvalidCommand(t *testing.T) {
	path := writeScript(t, "broken.sh", "#!/bin/bash\nnosuchcommand12345\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitTerminal(t, st)
	if status.State != StateError {
		t.Fatalf("Expected error state, got %s", status)
	}
	if !strings.Contains(status.Message, "status") {
		t.Errorf("Expected exit status in message, got %q", status.Message)
	}
	if !strings.Contains(stderr.String(), "command not found") {
		t.Errorf("Expected 'command not found' on stderr, got %q", stderr.String())
	}
}

func TestScriptTask_ExitCodeInMessage(t *testing.T) {
	path := writeScript(t, "fail.sh", "#!/bin/bash\nexit 3\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitTerminal(t, st)
	if status.State != StateError {
		t.Fatalf("Expected error state, got %s", status)
	}
	if !strings.Contains(status.Message, "status 3") {
		t.Errorf("Expected 'status 3' in message, got %q", status.Message)
	}
	if code, ok := st.ExitCode(); !ok || code != 3 {
		t.Errorf("Expected exit code 3, got %d (ok=%v)", code, ok)
	}
}

func TestScriptTask_Kill(t *testing.T) {
	path := writeScript(t, "sleep.sh", "#!/bin/bash\nsleep 30\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := st.Status(); got.State != StateRunning {
		t.Fatalf("Expected running, got %s", got.State)
	}

	if got := st.Kill(); got.State != StateKilled {
		t.Fatalf("Kill returned %s, expected killed", got)
	}

	status := waitTerminal(t, st)
	if status.State != StateKilled {
		t.Errorf("Expected killed after exit, got %s", status)
	}
}

func TestScriptTask_KillBeforeStart(t *testing.T) {
	path := writeScript(t, "noop.sh", "#!/bin/bash\ntrue\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}

	if got := st.Kill(); got.State != StateWaiting {
		t.Errorf("Kill before start should report waiting, got %s", got.State)
	}
	if got := st.Status(); got.State != StateWaiting {
		t.Errorf("Task should still be waiting, got %s", got.State)
	}
}

func TestScriptTask_KillAfterFinish(t *testing.T) {
	path := writeScript(t, "quick.sh", "#!/bin/bash\ntrue\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, st)

	// The process is gone; kill reports the terminal status unchanged.
	if got := st.Kill(); got.State != StateFinished {
		t.Errorf("Kill after finish should report finished, got %s", got)
	}
}

func TestScriptTask_DoubleStart(t *testing.T) {
	path := writeScript(t, "sleep.sh", "#!/bin/bash\nsleep 5\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer st.Kill()

	if err := st.Start(&stdout, &stderr); err == nil {
		t.Error("Second Start should fail")
	}
}

func TestScriptTask_StderrSink(t *testing.T) {
	path := writeScript(t, "mixed.sh", "#!/bin/bash\necho out\necho err >&2\n")

	st, err := NewScriptTask(path)
	if err != nil {
		t.Fatalf("NewScriptTask: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if err := st.Start(&stdout, &stderr); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitTerminal(t, st)
	if status.State != StateFinished {
		t.Fatalf("Expected finished, got %s", status)
	}
	if stdout.String() != "out\n" {
		t.Errorf("Expected 'out' on stdout, got %q", stdout.String())
	}
	if stderr.String() != "err\n" {
		t.Errorf("Expected 'err' on stderr, got %q", stderr.String())
	}
}

func TestDefaultShell(t *testing.T) {
	shell := DefaultShell()
	if shell == "" {
		t.Fatal("DefaultShell returned empty string")
	}
	if !strings.Contains(shell, "sh") {
		t.Errorf("Expected a shell path, got %q", shell)
	}
}
