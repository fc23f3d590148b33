package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRunAlreadyDone = errors.New("run already finished")
	ErrScriptInvalid  = errors.New("script invalid")
	ErrUnauthorized   = errors.New("unauthorized")
)
