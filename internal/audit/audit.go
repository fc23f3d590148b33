// Package audit records an event for every state-mutating action.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/store"
)

// Recorder writes audit events through the store.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a new audit recorder.
func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s}
}

// Record writes one event for a state-mutating action. Auditing never
// blocks the action itself; callers log failures and continue.
func (r *Recorder) Record(action string, inputs interface{}, outcome, runID, details string) (*models.Event, error) {
	inputsHash := hashInputs(inputs)
	return r.store.WriteEvent(runID, action, inputsHash, outcome, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
