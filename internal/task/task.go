// Package task defines runnable units of work and the shell-script
// realization Tempora supervises.
package task

import (
	"fmt"
	"io"
)

// State is the lifecycle position of a runnable.
type State string

const (
	StateWaiting  State = "waiting"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateKilled   State = "killed"
	StateError    State = "error"
)

// Status pairs a state with an optional message. Message is only set
// for StateError.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

func Waiting() Status  { return Status{State: StateWaiting} }
func Running() Status  { return Status{State: StateRunning} }
func Finished() Status { return Status{State: StateFinished} }
func Killed() Status   { return Status{State: StateKilled} }

// Errorf builds an error status with a formatted message.
func Errorf(format string, args ...interface{}) Status {
	return Status{State: StateError, Message: fmt.Sprintf(format, args...)}
}

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s.State == StateFinished || s.State == StateKilled || s.State == StateError
}

// String renders the status for logs and CLI output.
func (s Status) String() string {
	if s.Message != "" {
		return fmt.Sprintf("%s: %s", s.State, s.Message)
	}
	return string(s.State)
}

// Runnable is a unit of work that can be started with caller-owned
// output sinks, polled without blocking, and killed immediately.
type Runnable interface {
	// Start begins execution with stdout and stderr wired to the given
	// sinks. The sinks stay owned by the caller.
	Start(stdout, stderr io.Writer) error

	// Status reports the current state without waiting for the work to
	// finish.
	Status() Status

	// Kill terminates the work immediately and returns the resulting
	// status.
	Kill() Status
}
