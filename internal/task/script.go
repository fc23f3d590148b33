package task

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
)

// Validation failures for script paths, checked in this order.
var (
	ErrScriptNotFound = errors.New("script not found")
	ErrNotRegularFile = errors.New("script is not a regular file")
	ErrNotExecutable  = errors.New("script is not executable")
)

// ScriptTask runs a shell script as a monitored child process. The
// zero value is not usable; construct with NewScriptTask.
type ScriptTask struct {
	path  string
	shell string

	mu     sync.Mutex
	cmd    *exec.Cmd
	done   chan struct{}
	result Status
	killed bool
}

// NewScriptTask validates path and returns a task in the waiting
// state. The path must exist, must be a regular file, and must have at
// least one execute bit set.
func NewScriptTask(path string) (*ScriptTask, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, fmt.Errorf("stat script: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}
	return &ScriptTask{path: path, shell: DefaultShell()}, nil
}

// Path returns the script path the task was built for.
func (t *ScriptTask) Path() string { return t.path }

// SetShell overrides the interpreter used by Start. Ignored once the
// task has started.
func (t *ScriptTask) SetShell(shell string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd == nil && shell != "" {
		t.shell = shell
	}
}

// Start spawns the interpreter with the script path as its argument
// and the process's stdout and stderr wired to the sinks. A failed
// spawn leaves the task waiting: the returned error is the only trace
// and no process is retained. Start can only succeed once.
func (t *ScriptTask) Start(stdout, stderr io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return fmt.Errorf("script already started: %s", t.path)
	}

	cmd := exec.Command(t.shell, t.path)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start script: %w", err)
	}

	t.cmd = cmd
	t.done = make(chan struct{})
	go t.wait(cmd)
	return nil
}

// wait collects the exit exactly once and publishes the terminal
// status.
func (t *ScriptTask) wait(cmd *exec.Cmd) {
	err := cmd.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.killed:
		t.result = Killed()
	case err == nil:
		t.result = Finished()
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			t.result = Errorf("script failed with status %d", exitErr.ExitCode())
		} else {
			t.result = Errorf("script failed: %v", err)
		}
	}
	close(t.done)
}

// Status polls the task without blocking. Before Start it reports
// waiting; while the process lives it reports running; afterwards it
// reports the terminal status the exit produced.
func (t *ScriptTask) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return Waiting()
	}
	select {
	case <-t.done:
		return t.result
	default:
		return Running()
	}
}

// Kill terminates the process immediately. Killing a task that was
// never started is a no-op reporting waiting; killing one that already
// exited returns its terminal status unchanged.
func (t *ScriptTask) Kill() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return Waiting()
	}
	select {
	case <-t.done:
		return t.result
	default:
	}

	t.killed = true
	if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		t.killed = false
		return Errorf("failed to kill script: %v", err)
	}
	return Killed()
}

// ExitCode reports the script's exit status once it has exited. ok is
// false before then and when no exit status was collected.
func (t *ScriptTask) ExitCode() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return 0, false
	}
	select {
	case <-t.done:
	default:
		return 0, false
	}
	if t.cmd.ProcessState == nil {
		return 0, false
	}
	return t.cmd.ProcessState.ExitCode(), true
}
