package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/ics"
)

var icsCmd = &cobra.Command{
	Use:   "ics",
	Short: "Import and export the calendar as iCalendar",
}

var icsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Mark busy blocks from an .ics file",
	Long: `Reads an iCalendar file and marks every event occurrence busy on the
daemon's availability calendar. Events are placed by weekday and time
of day; recurring events fill the weekly template.`,
	Args: cobra.ExactArgs(1),
	RunE: runICSImport,
}

var icsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the busy blocks as an .ics file",
	Long: `Renders the availability calendar as iCalendar with one weekly
recurring event per busy span. Without a file argument the calendar is
written to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runICSExport,
}

func init() {
	icsCmd.AddCommand(icsImportCmd, icsExportCmd)
}

func runICSImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	if !daemonRunning() {
		return fmt.Errorf("daemon not running; the calendar lives in the daemon")
	}

	resp, err := apiPostRaw("/week/ics", "text/calendar", data)
	if err != nil {
		return err
	}

	var result struct {
		Applied int `json:"applied"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Applied %d busy occurrences from %s\n", result.Applied, args[0])
	return nil
}

func runICSExport(cmd *cobra.Command, args []string) error {
	var payload string

	if daemonRunning() {
		resp, err := apiGet("/week/ics")
		if err != nil {
			return err
		}
		payload = string(resp)
	} else {
		// Daemon down: export the config template.
		week, err := cfg.Week()
		if err != nil {
			return err
		}
		payload = ics.ExportWeek(week)
	}

	if len(args) == 0 {
		fmt.Print(payload)
		return nil
	}

	if err := os.WriteFile(args[0], []byte(payload), 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", args[0])
	return nil
}
