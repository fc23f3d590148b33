// Package models defines the core domain types for Tempora.
package models

import "time"

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunKilled   RunStatus = "killed"
	RunError    RunStatus = "error"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunFinished || s == RunKilled || s == RunError
}

// Run represents one execution of a script, queued through the daemon.
type Run struct {
	ID         string     `json:"id"`
	Script     string     `json:"script"` // registry name, or base name for bare paths
	Path       string     `json:"path"`   // resolved absolute script path
	Status     RunStatus  `json:"status"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Error      string     `json:"error,omitempty"`
	StdoutPath string     `json:"stdout_path,omitempty"`
	StderrPath string     `json:"stderr_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Script represents a named entry in the script registry.
type Script struct {
	Name        string    `json:"name" yaml:"name"`
	Path        string    `json:"path" yaml:"path"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	AddedAt     time.Time `json:"added_at" yaml:"added_at"`
}

// Event represents an audit record for a state-mutating action.
type Event struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
