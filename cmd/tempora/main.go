package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/config"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tempora",
	Short: "Tempora - script scheduling with a weekly availability calendar",
	Long: `Tempora queues shell scripts as supervised runs and keeps a weekly
availability calendar of busy and free time blocks. The daemon owns the
queue and the calendar; the CLI and TUI talk to it over a local HTTP API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Version and help never need the config or a daemon.
		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		resolveAPI()
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of Tempora",
	Run:   runVersion,
}

var (
	cfg      *config.Config
	cfgPath  string
	apiAddr  string
	apiToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default: from the daemon file)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(icsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("Tempora version %s\n", Version)
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
