package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkornelli/tempora/internal/logx"
)

// Editors fire several events per save; coalesce them.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the config when the file changes on disk and hands
// each successfully parsed config to the callback. Reloads that fail
// validation keep the previous config in effect.
type Watcher struct {
	path     string
	onChange func(*Config)
	log      logx.Logger
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer

	done chan struct{}
}

// NewWatcher starts watching path.
func NewWatcher(path string, log logx.Logger, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory rather than the file: most editors replace
	// the file on save, which would drop a watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		log:      log,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", logx.Err(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload failed, keeping previous", logx.Err(err))
		return
	}
	w.log.Info("config reloaded", logx.String("path", w.path))
	w.onChange(cfg)
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
