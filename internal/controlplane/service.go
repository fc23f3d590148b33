// Package controlplane provides the HTTP API and service layer for Tempora.
package controlplane

import (
	"os"
	"sync"
	"time"

	"github.com/mkornelli/tempora/internal/audit"
	"github.com/mkornelli/tempora/internal/ics"
	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/runner"
	"github.com/mkornelli/tempora/internal/schedule"
	"github.com/mkornelli/tempora/internal/scripts"
	"github.com/mkornelli/tempora/internal/store"
	"github.com/mkornelli/tempora/internal/task"
)

// Service provides the control plane business logic.
type Service struct {
	store    *store.Store
	rec      *audit.Recorder
	registry *scripts.Registry
	runner   *runner.Runner

	weekMu sync.RWMutex
	week   *schedule.Week
}

// NewService creates a new control plane service. A nil week starts
// with every block free on the default grid.
func NewService(s *store.Store, rec *audit.Recorder, reg *scripts.Registry, run *runner.Runner, week *schedule.Week) *Service {
	if week == nil {
		week = schedule.NewWeek(schedule.DefaultInterval)
	}
	return &Service{
		store:    s,
		rec:      rec,
		registry: reg,
		runner:   run,
		week:     week,
	}
}

// --- Run Operations ---

// SubmitRun queues a script for execution. The argument is either a
// registered script name or a path on disk; the script is validated
// before the run is recorded.
func (s *Service) SubmitRun(scriptArg string) (*models.Run, error) {
	name, path, err := s.registry.Resolve(scriptArg)
	if err != nil {
		return nil, err
	}

	// Reject unrunnable scripts up front rather than at dispatch time.
	if _, err := task.NewScriptTask(path); err != nil {
		return nil, err
	}

	run, err := s.store.CreateRun(name, path)
	if err != nil {
		return nil, err
	}

	s.rec.Record("run.submit", map[string]string{"script": name, "path": path}, "success", run.ID, "")
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(id string) (*models.Run, error) {
	return s.store.GetRun(id)
}

// ListRuns returns filtered runs, newest first.
func (s *Service) ListRuns(status string, limit int) ([]models.Run, error) {
	return s.store.ListRuns(status, limit)
}

// KillRun stops a running or queued run. The store record is
// finalized by the supervisor shortly after a live kill, so the
// returned run may still read as running.
func (s *Service) KillRun(id string) (*models.Run, error) {
	run, err := s.store.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.Status.Terminal() {
		return nil, ErrRunAlreadyDone
	}

	if _, err := s.runner.Kill(id); err != nil {
		return nil, err
	}
	return s.store.GetRun(id)
}

// RunOutput reads the captured stdout and stderr for a run.
func (s *Service) RunOutput(id string) (stdout, stderr string, err error) {
	run, err := s.store.GetRun(id)
	if err != nil {
		return "", "", err
	}
	if run == nil {
		return "", "", ErrRunNotFound
	}

	stdout = readSink(run.StdoutPath)
	stderr = readSink(run.StderrPath)
	return stdout, stderr, nil
}

// RunEvents returns the audit trail for a run.
func (s *Service) RunEvents(id string) ([]models.Event, error) {
	run, err := s.store.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return s.store.ListEventsForRun(id)
}

// RunnerStats reports current execution capacity usage.
func (s *Service) RunnerStats() (active, max int) {
	if s.runner == nil {
		return 0, 0
	}
	return s.runner.Stats()
}

func readSink(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// --- Script Operations ---

// AddScript registers a script under a name and persists the registry.
func (s *Service) AddScript(name, path, description string) (models.Script, error) {
	script, err := s.registry.Add(name, path, description)
	if err != nil {
		return models.Script{}, err
	}
	if err := s.registry.Save(); err != nil {
		return models.Script{}, err
	}
	s.rec.Record("script.add", map[string]string{"name": name, "path": script.Path}, "success", "", "")
	return script, nil
}

// RemoveScript drops a script from the registry and persists it.
func (s *Service) RemoveScript(name string) error {
	if err := s.registry.Remove(name); err != nil {
		return err
	}
	if err := s.registry.Save(); err != nil {
		return err
	}
	s.rec.Record("script.remove", map[string]string{"name": name}, "success", "", "")
	return nil
}

// ListScripts returns all registered scripts sorted by name.
func (s *Service) ListScripts() []models.Script {
	return s.registry.List()
}

// GetScript looks up a registered script by name.
func (s *Service) GetScript(name string) (models.Script, bool) {
	return s.registry.Get(name)
}

// --- Calendar Operations ---

// WeekSnapshot returns a copy of the current availability week.
func (s *Service) WeekSnapshot() *schedule.Week {
	s.weekMu.RLock()
	defer s.weekMu.RUnlock()
	return s.week.Clone()
}

// DaySnapshot returns a copy of one day of the availability week.
func (s *Service) DaySnapshot(wd time.Weekday) *schedule.Day {
	s.weekMu.RLock()
	defer s.weekMu.RUnlock()
	return s.week.Day(wd).Clone()
}

// MarkWeek sets every block in [start, end) on the named day to the
// given status. An end of "24:00" covers through the end of the day.
func (s *Service) MarkWeek(day, start, end string, status schedule.BlockStatus) error {
	wd, err := schedule.ParseWeekday(day)
	if err != nil {
		return err
	}

	s.weekMu.Lock()
	defer s.weekMu.Unlock()

	iv := s.week.Interval()
	from, err := schedule.ParseTimeOfDay(start)
	if err != nil {
		return err
	}
	to, err := iv.EndIndex(end)
	if err != nil {
		return err
	}

	if err := s.week.Day(wd).SetIndexRange(iv.IndexOf(from), to, status); err != nil {
		return err
	}

	s.rec.Record("week.mark", map[string]string{
		"day":    wd.String(),
		"start":  start,
		"end":    end,
		"status": string(status),
	}, "success", "", "")
	return nil
}

// WeekStatusAt reports the block status covering a wall-clock time on
// the named day.
func (s *Service) WeekStatusAt(day, at string) (schedule.BlockStatus, error) {
	wd, err := schedule.ParseWeekday(day)
	if err != nil {
		return "", err
	}
	t, err := schedule.ParseTimeOfDay(at)
	if err != nil {
		return "", err
	}

	s.weekMu.RLock()
	defer s.weekMu.RUnlock()
	return s.week.Day(wd).StatusAt(t)
}

// ReplaceWeek swaps in a new availability week, typically after a
// config reload.
func (s *Service) ReplaceWeek(week *schedule.Week) {
	if week == nil {
		return
	}
	s.weekMu.Lock()
	s.week = week
	s.weekMu.Unlock()
	s.rec.Record("week.replace", map[string]int{"busy_blocks": week.BusyCount()}, "success", "", "")
}

// ImportICS marks every event occurrence in an iCalendar payload busy
// on the availability week. Returns the number of occurrences applied.
func (s *Service) ImportICS(body []byte) (int, error) {
	s.weekMu.Lock()
	applied, err := ics.ImportBusy(s.week, body)
	s.weekMu.Unlock()
	if err != nil {
		return 0, err
	}
	s.rec.Record("week.import", map[string]int{"applied": applied}, "success", "", "")
	return applied, nil
}

// ExportICS renders the availability week as an iCalendar document.
func (s *Service) ExportICS() string {
	s.weekMu.RLock()
	defer s.weekMu.RUnlock()
	return ics.ExportWeek(s.week)
}
