// Package runner claims queued runs from the store and supervises the
// spawned script processes until they reach a terminal state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkornelli/tempora/internal/audit"
	"github.com/mkornelli/tempora/internal/logx"
	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/store"
	"github.com/mkornelli/tempora/internal/task"
)

const dispatchInterval = 500 * time.Millisecond

// Config sizes the runner.
type Config struct {
	RunsDir       string // per-run output sinks live here
	Shell         string // interpreter override; empty picks the default
	MaxConcurrent int    // parallel runs
	PollPerSecond int    // status polls across all supervisors
	KeepRuns      int    // terminal runs retained in the store
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent: 4,
		PollPerSecond: 10,
		KeepRuns:      200,
	}
}

// Runner executes queued runs as supervised script processes.
type Runner struct {
	store   *store.Store
	rec     *audit.Recorder
	cfg     *Config
	log     logx.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	active map[string]*task.ScriptTask

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runner.
func New(s *store.Store, rec *audit.Recorder, cfg *Config, log logx.Logger) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	pps := cfg.PollPerSecond
	if pps <= 0 {
		pps = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store: s,
		rec:   rec,
		cfg:   cfg,
		log:   log,
		// One limiter shared by every supervisor.
		limiter: rate.NewLimiter(rate.Limit(pps), pps),
		active:  make(map[string]*task.ScriptTask),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the dispatch loop.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.dispatchLoop()
	r.log.Info("runner started",
		logx.Int("max_concurrent", r.cfg.MaxConcurrent),
		logx.Int("poll_per_second", r.cfg.PollPerSecond))
}

// Stop cancels dispatch, kills anything still running, and waits for
// all supervisors to finalize their runs.
func (r *Runner) Stop() {
	r.cancel()

	r.mu.Lock()
	for id, t := range r.active {
		st := t.Kill()
		r.log.Warn("killed run on shutdown", logx.String("run_id", id), logx.String("state", string(st.State)))
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info("runner stopped")
}

// Stats reports current capacity usage.
func (r *Runner) Stats() (active, max int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active), r.cfg.MaxConcurrent
}

// Kill terminates a live run or cancels a queued one. The returned
// status reflects the task's view; the store record is finalized by
// the supervisor (live runs) or here (queued runs).
func (r *Runner) Kill(runID string) (task.Status, error) {
	r.mu.Lock()
	t, live := r.active[runID]
	r.mu.Unlock()

	if live {
		st := t.Kill()
		r.record("run.kill", map[string]string{"run_id": runID}, string(st.State), runID, st.Message)
		return st, nil
	}

	// Not live: cancel it while it is still queued.
	if err := r.store.CancelQueued(runID, time.Now().UTC()); err != nil {
		return task.Status{}, err
	}
	r.record("run.kill", map[string]string{"run_id": runID}, "canceled", runID, "canceled while queued")
	return task.Killed(), nil
}

func (r *Runner) dispatchLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.dispatch()
		}
	}
}

// dispatch claims queued runs while capacity allows.
func (r *Runner) dispatch() {
	for {
		r.mu.Lock()
		capacityLeft := len(r.active) < r.cfg.MaxConcurrent
		r.mu.Unlock()
		if !capacityLeft {
			return
		}

		run, err := r.store.NextQueued()
		if err != nil {
			r.log.Error("query queued runs", logx.Err(err))
			return
		}
		if run == nil {
			return
		}

		if err := r.launch(run); err != nil {
			if errors.Is(err, store.ErrRunNotClaimable) {
				// Canceled between the query and the claim.
				continue
			}
			r.log.Error("launch run", logx.String("run_id", run.ID), logx.Err(err))
			now := time.Now().UTC()
			if ferr := r.store.FinishRun(run.ID, models.RunError, nil, err.Error(), now); ferr != nil {
				r.log.Error("finalize failed launch", logx.String("run_id", run.ID), logx.Err(ferr))
			}
			r.record("run.start", map[string]string{"run_id": run.ID, "path": run.Path}, "error", run.ID, err.Error())
		}
	}
}

// launch validates the script, opens its sinks, claims the run, and
// starts supervision.
func (r *Runner) launch(run *models.Run) error {
	t, err := task.NewScriptTask(run.Path)
	if err != nil {
		return err
	}
	if r.cfg.Shell != "" {
		t.SetShell(r.cfg.Shell)
	}

	dir := filepath.Join(r.cfg.RunsDir, run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	stdoutPath := filepath.Join(dir, "stdout.log")
	stderrPath := filepath.Join(dir, "stderr.log")

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return fmt.Errorf("create stdout sink: %w", err)
	}
	stderr, err := os.Create(stderrPath)
	if err != nil {
		stdout.Close()
		return fmt.Errorf("create stderr sink: %w", err)
	}

	if err := r.store.MarkRunStarted(run.ID, stdoutPath, stderrPath, time.Now().UTC()); err != nil {
		stdout.Close()
		stderr.Close()
		return err
	}

	if err := t.Start(stdout, stderr); err != nil {
		stdout.Close()
		stderr.Close()
		return err
	}

	r.mu.Lock()
	r.active[run.ID] = t
	r.mu.Unlock()

	r.record("run.start", map[string]string{"run_id": run.ID, "path": run.Path}, "success", run.ID, "")
	r.log.Info("run started", logx.String("run_id", run.ID), logx.String("script", run.Script))

	r.wg.Add(1)
	go r.supervise(run.ID, t, stdout, stderr)
	return nil
}

// supervise polls the task until it reaches a terminal state, then
// finalizes the store record. Polls across all supervisors share one
// rate limiter.
func (r *Runner) supervise(runID string, t *task.ScriptTask, stdout, stderr *os.File) {
	defer r.wg.Done()
	defer stdout.Close()
	defer stderr.Close()

	var st task.Status
	for {
		st = t.Status()
		if st.Terminal() {
			break
		}
		if err := r.limiter.Wait(r.ctx); err != nil {
			// Shutdown: Stop has killed the process; collect the result.
			st = t.Kill()
			break
		}
	}

	r.mu.Lock()
	delete(r.active, runID)
	r.mu.Unlock()

	status, exitCode, errMsg := runOutcome(st, t)
	if err := r.store.FinishRun(runID, status, exitCode, errMsg, time.Now().UTC()); err != nil {
		r.log.Error("finalize run", logx.String("run_id", runID), logx.Err(err))
	}
	r.record("run.finish", map[string]string{"run_id": runID, "state": string(st.State)}, string(status), runID, errMsg)
	r.log.Info("run finished", logx.String("run_id", runID), logx.String("status", string(status)))

	if r.cfg.KeepRuns > 0 {
		if _, err := r.store.PruneRuns(r.cfg.KeepRuns); err != nil {
			r.log.Warn("prune runs", logx.Err(err))
		}
	}
}

// runOutcome maps a terminal task status onto the run record fields.
func runOutcome(st task.Status, t *task.ScriptTask) (models.RunStatus, *int, string) {
	var exitCode *int
	if code, ok := t.ExitCode(); ok {
		exitCode = &code
	}

	switch st.State {
	case task.StateFinished:
		return models.RunFinished, exitCode, ""
	case task.StateKilled:
		return models.RunKilled, exitCode, ""
	default:
		return models.RunError, exitCode, st.Message
	}
}

func (r *Runner) record(action string, inputs interface{}, outcome, runID, details string) {
	if _, err := r.rec.Record(action, inputs, outcome, runID, details); err != nil {
		r.log.Warn("audit record", logx.String("action", action), logx.Err(err))
	}
}
