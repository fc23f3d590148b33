package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/scripts"
	"github.com/mkornelli/tempora/internal/store"
	"github.com/mkornelli/tempora/internal/task"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local Tempora environment",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Tempora environment check")
	fmt.Println()

	// Config
	if _, err := os.Stat(cfgPath); err == nil {
		ok("config: %s", cfgPath)
	} else {
		warn("config: %s (missing, using defaults)", cfgPath)
	}

	// Data directory
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		fail("data dir: %v", err)
	} else if probe, err := os.CreateTemp(cfg.DataDir, ".doctor-*"); err != nil {
		fail("data dir not writable: %v", err)
	} else {
		probe.Close()
		os.Remove(probe.Name())
		ok("data dir: %s", cfg.DataDir)
	}

	// Calendar template
	if week, err := cfg.Week(); err != nil {
		fail("calendar: %v", err)
	} else {
		ok("calendar: %d-minute blocks, %d busy from config", week.Interval().Minutes(), week.BusyCount())
	}

	// Daemon and database. The daemon holds the database open, so only
	// probe the file directly when it is down.
	health, healthErr := CheckHealth()
	if healthErr == nil && health.OK {
		ok("daemon: %s (v%s, %d/%d active runs)", apiAddr, health.Version, health.Active, health.Max)
		ok("database: healthy per daemon")
	} else {
		warn("daemon: not running (start with 'tempora daemon')")
		if st, err := store.New(cfg.DBPath()); err != nil {
			fail("database: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := st.Ping(ctx); err != nil {
				fail("database: %v", err)
			} else if queued, err := st.CountByStatus(models.RunQueued); err == nil && queued > 0 {
				warn("database: %s (%d queued runs waiting for a daemon)", cfg.DBPath(), queued)
			} else {
				ok("database: %s", cfg.DBPath())
			}
			cancel()
			st.Close()
		}
	}

	// Script registry
	reg, err := scripts.Load(cfg.RegistryPath())
	if err != nil {
		fail("registry: %v", err)
	} else {
		broken := 0
		for _, sc := range reg.List() {
			if _, err := task.NewScriptTask(sc.Path); err != nil {
				fail("script %s: %v", sc.Name, err)
				broken++
			}
		}
		ok("registry: %d scripts, %d broken", reg.Count(), broken)
	}

	// Interpreters
	interpreters := task.DetectInterpreters()
	if len(interpreters) == 0 {
		fail("no shell found on PATH; scripts cannot run")
	}
	for _, in := range interpreters {
		if in.Version != "" {
			ok("shell: %s (%s)", in.Path, in.Version)
		} else {
			ok("shell: %s", in.Path)
		}
	}

	return nil
}

func ok(format string, a ...interface{})   { fmt.Printf("  ✓ "+format+"\n", a...) }
func warn(format string, a ...interface{}) { fmt.Printf("  ! "+format+"\n", a...) }
func fail(format string, a ...interface{}) { fmt.Printf("  ✗ "+format+"\n", a...) }
