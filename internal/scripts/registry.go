// Package scripts maintains the registry of named scripts.
package scripts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/task"
)

var (
	// ErrNotRegistered indicates an unknown script name.
	ErrNotRegistered = errors.New("script not registered")
	// ErrAlreadyRegistered indicates a name collision on add.
	ErrAlreadyRegistered = errors.New("script name already registered")
)

// Registry is the file-backed set of named scripts. All access is
// through copies; callers never see the internal map.
type Registry struct {
	path string

	mu      sync.RWMutex
	entries map[string]models.Script
}

type registryFile struct {
	Scripts []models.Script `yaml:"scripts"`
}

// Load reads the registry at path. A missing file is an empty
// registry.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, entries: make(map[string]models.Script)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	for _, sc := range f.Scripts {
		r.entries[sc.Name] = sc
	}
	return r, nil
}

// Save writes the registry back to disk, sorted by name.
func (r *Registry) Save() error {
	r.mu.RLock()
	f := registryFile{Scripts: r.sorted()}
	r.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Add validates the script path and registers it under name. The same
// checks apply as at run time: the path must exist, be a regular file,
// and be executable.
func (r *Registry) Add(name, path, description string) (models.Script, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Script{}, fmt.Errorf("script name cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return models.Script{}, fmt.Errorf("resolve path: %w", err)
	}
	if _, err := task.NewScriptTask(abs); err != nil {
		return models.Script{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return models.Script{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}

	sc := models.Script{
		Name:        name,
		Path:        abs,
		Description: description,
		AddedAt:     time.Now().UTC(),
	}
	r.entries[name] = sc
	return sc, nil
}

// Remove drops a named script from the registry.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	delete(r.entries, name)
	return nil
}

// Get returns a copy of the named entry.
func (r *Registry) Get(name string) (models.Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.entries[name]
	return sc, ok
}

// List returns name-sorted copies of all entries.
func (r *Registry) List() []models.Script {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted()
}

// Count returns the number of registered scripts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Resolve maps a name-or-path argument onto a display name and an
// absolute path. Registered names win; anything else is treated as a
// filesystem path.
func (r *Registry) Resolve(arg string) (name, path string, err error) {
	if sc, ok := r.Get(arg); ok {
		return sc.Name, sc.Path, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", "", fmt.Errorf("resolve path: %w", err)
	}
	return filepath.Base(abs), abs, nil
}

// sorted assumes the caller holds at least a read lock.
func (r *Registry) sorted() []models.Script {
	out := make([]models.Script, 0, len(r.entries))
	for _, sc := range r.entries {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
