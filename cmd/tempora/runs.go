package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/models"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and manage runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show run details",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsKillCmd = &cobra.Command{
	Use:   "kill [run-id]",
	Short: "Kill a queued or running run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsKill,
}

var runsOutputCmd = &cobra.Command{
	Use:   "output [run-id]",
	Short: "Show the captured stdout and stderr of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsOutput,
}

var runsEventsCmd = &cobra.Command{
	Use:   "events [run-id]",
	Short: "Show the audit trail of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsEvents,
}

var (
	runsStatus string
	runsLimit  int
)

func init() {
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsKillCmd, runsOutputCmd, runsEventsCmd)

	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "Filter by status (queued, running, finished, killed, error)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	url := "/runs?limit=" + strconv.Itoa(runsLimit)
	if runsStatus != "" {
		url += "&status=" + runsStatus
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var runs []models.Run
	if err := json.Unmarshal(resp, &runs); err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCRIPT\tSTATUS\tEXIT\tCREATED")
	for _, r := range runs {
		exit := ""
		if r.ExitCode != nil {
			exit = strconv.Itoa(*r.ExitCode)
		}
		created := r.CreatedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", truncateID(r.ID), truncate(r.Script, 30), r.Status, exit, created)
	}
	w.Flush()
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := resolveRunID(args[0])
	if err != nil {
		return err
	}

	resp, err := apiGet("/runs/" + id)
	if err != nil {
		return err
	}

	var run models.Run
	if err := json.Unmarshal(resp, &run); err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", run.ID)
	fmt.Printf("Script:   %s\n", run.Script)
	fmt.Printf("Path:     %s\n", run.Path)
	fmt.Printf("Status:   %s\n", run.Status)
	if run.ExitCode != nil {
		fmt.Printf("Exit:     %d\n", *run.ExitCode)
	}
	if run.Error != "" {
		fmt.Printf("Error:    %s\n", run.Error)
	}
	fmt.Printf("Created:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if run.StartedAt != nil {
		fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if run.EndedAt != nil {
		fmt.Printf("Ended:    %s\n", run.EndedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRunsKill(cmd *cobra.Command, args []string) error {
	id, err := resolveRunID(args[0])
	if err != nil {
		return err
	}

	resp, err := apiPost("/runs/"+id+"/kill", nil)
	if err != nil {
		return err
	}

	var run models.Run
	if err := json.Unmarshal(resp, &run); err != nil {
		return err
	}

	fmt.Printf("Kill requested for %s (status: %s)\n", truncateID(run.ID), run.Status)
	return nil
}

func runRunsOutput(cmd *cobra.Command, args []string) error {
	id, err := resolveRunID(args[0])
	if err != nil {
		return err
	}

	resp, err := apiGet("/runs/" + id + "/output")
	if err != nil {
		return err
	}

	var out struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return err
	}

	fmt.Print(out.Stdout)
	if out.Stderr != "" {
		fmt.Fprint(os.Stderr, out.Stderr)
	}
	return nil
}

func runRunsEvents(cmd *cobra.Command, args []string) error {
	id, err := resolveRunID(args[0])
	if err != nil {
		return err
	}

	resp, err := apiGet("/runs/" + id + "/events")
	if err != nil {
		return err
	}

	var events []models.Event
	if err := json.Unmarshal(resp, &events); err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("15:04:05"), e.Action, e.Outcome, truncate(e.Details, 60))
	}
	w.Flush()
	return nil
}

// resolveRunID expands a unique run ID prefix into the full ID.
func resolveRunID(arg string) (string, error) {
	if len(arg) == 36 {
		return arg, nil
	}

	resp, err := apiGet("/runs?limit=200")
	if err != nil {
		return "", err
	}
	var runs []models.Run
	if err := json.Unmarshal(resp, &runs); err != nil {
		return "", err
	}

	match := ""
	for _, r := range runs {
		if strings.HasPrefix(r.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("run id %q is ambiguous", arg)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no run matching %q", arg)
	}
	return match, nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
