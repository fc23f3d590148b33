package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	// 1. Make sure the daemon is up
	if !daemonRunning() {
		fmt.Println("⚡ Tempora daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	// 2. Launch TUI
	app := tui.New(apiAddr, apiToken)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Start "tempora daemon" detached so it survives TUI exit
	c := exec.Command(exe, "daemon", "--config", cfgPath)
	configureDaemonProc(c)

	// Keep the daemon off the TUI's terminal.
	c.Stdin = nil
	c.Stdout = nil
	c.Stderr = nil

	if err := c.Start(); err != nil {
		return err
	}

	// Wait for it to become ready
	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		time.Sleep(250 * time.Millisecond)
		// Re-resolve: the fresh daemon mints a fresh token.
		resolveAPI()
		if daemonRunning() {
			fmt.Println(" done.")
			return nil
		}
		fmt.Print(".")
	}
	fmt.Println(" timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr)
}
