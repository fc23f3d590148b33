package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/models"
)

var runDetach bool

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Queue a script and follow it to completion",
	Long: `Queues a script for execution. The argument is a registered script name
or a path to an executable script. Without --detach the command waits
for the run to finish and prints its output.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDetach, "detach", false, "Queue the run and return immediately")
}

func runRun(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/runs", map[string]string{"script": args[0]})
	if err != nil {
		return err
	}

	var run models.Run
	if err := json.Unmarshal(resp, &run); err != nil {
		return err
	}

	if runDetach {
		fmt.Printf("Queued run %s\n", run.ID)
		return nil
	}

	fmt.Printf("Queued run %s, waiting...\n", truncateID(run.ID))
	final, err := waitForRun(run.ID)
	if err != nil {
		return err
	}

	printRunOutput(final.ID)

	switch final.Status {
	case models.RunFinished:
		fmt.Printf("✓ %s finished\n", final.Script)
		return nil
	case models.RunKilled:
		return fmt.Errorf("run %s was killed", truncateID(final.ID))
	default:
		if final.Error != "" {
			return fmt.Errorf("run failed: %s", final.Error)
		}
		return fmt.Errorf("run failed")
	}
}

// waitForRun polls until the run reaches a terminal state.
func waitForRun(id string) (*models.Run, error) {
	last := models.RunStatus("")
	for {
		resp, err := apiGet("/runs/" + id)
		if err != nil {
			return nil, err
		}
		var run models.Run
		if err := json.Unmarshal(resp, &run); err != nil {
			return nil, err
		}

		if run.Status != last {
			if run.Status == models.RunRunning {
				fmt.Println("▶ running")
			}
			last = run.Status
		}
		if run.Status.Terminal() {
			return &run, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printRunOutput(id string) {
	resp, err := apiGet("/runs/" + id + "/output")
	if err != nil {
		return
	}

	var out struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return
	}

	if out.Stdout != "" {
		fmt.Println("\n--- STDOUT ---")
		fmt.Print(out.Stdout)
	}
	if out.Stderr != "" {
		fmt.Println("\n--- STDERR ---")
		fmt.Print(out.Stderr)
	}
	if out.Stdout != "" || out.Stderr != "" {
		fmt.Println()
	}
}
