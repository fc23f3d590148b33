package task

import (
	"os/exec"
	"strings"
)

// DefaultShell resolves the interpreter scripts run under: bash when
// installed, otherwise plain sh.
func DefaultShell() string {
	if path, err := exec.LookPath("bash"); err == nil {
		return path
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path
	}
	return "sh"
}

// Interpreter describes a shell found on the PATH.
type Interpreter struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
}

// DetectInterpreters probes the PATH for common shells. Used by the
// doctor command to report the environment.
func DetectInterpreters() []Interpreter {
	names := []string{"bash", "sh", "zsh", "dash"}

	found := make([]Interpreter, 0, len(names))
	for _, name := range names {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		found = append(found, Interpreter{
			Name:    name,
			Path:    path,
			Version: interpreterVersion(path),
		})
	}
	return found
}

// interpreterVersion asks the shell for its version and keeps the
// first line. Not every shell supports --version; a failure just
// leaves the field empty.
func interpreterVersion(path string) string {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return ""
	}
	version := strings.TrimSpace(string(out))
	if idx := strings.Index(version, "\n"); idx > 0 {
		version = version[:idx]
	}
	if len(version) > 60 {
		version = version[:60]
	}
	return version
}
