package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/scripts"
	"github.com/mkornelli/tempora/internal/task"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Manage the script registry",
}

var scriptAddCmd = &cobra.Command{
	Use:   "add [name] [path]",
	Short: "Register a script under a name",
	Args:  cobra.ExactArgs(2),
	RunE:  runScriptAdd,
}

var scriptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered scripts",
	RunE:  runScriptList,
}

var scriptRmCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Remove a script from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptRm,
}

var scriptCheckCmd = &cobra.Command{
	Use:   "check [name-or-path]",
	Short: "Check that a script is runnable",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptCheck,
}

var scriptDesc string

func init() {
	scriptCmd.AddCommand(scriptAddCmd, scriptListCmd, scriptRmCmd, scriptCheckCmd)

	scriptAddCmd.Flags().StringVar(&scriptDesc, "desc", "", "Script description")
}

func runScriptAdd(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	if daemonRunning() {
		resp, err := apiPost("/scripts", map[string]string{
			"name": name, "path": path, "description": scriptDesc,
		})
		if err != nil {
			return err
		}
		var sc models.Script
		if err := json.Unmarshal(resp, &sc); err != nil {
			return err
		}
		fmt.Printf("Registered %s -> %s\n", sc.Name, sc.Path)
		return nil
	}

	// Daemon down: edit the registry file directly.
	reg, err := scripts.Load(cfg.RegistryPath())
	if err != nil {
		return err
	}
	sc, err := reg.Add(name, path, scriptDesc)
	if err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}
	fmt.Printf("Registered %s -> %s\n", sc.Name, sc.Path)
	return nil
}

func runScriptList(cmd *cobra.Command, args []string) error {
	var list []models.Script

	if daemonRunning() {
		resp, err := apiGet("/scripts")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(resp, &list); err != nil {
			return err
		}
	} else {
		reg, err := scripts.Load(cfg.RegistryPath())
		if err != nil {
			return err
		}
		list = reg.List()
	}

	if len(list) == 0 {
		fmt.Println("No scripts registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tDESCRIPTION")
	for _, sc := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sc.Name, sc.Path, truncate(sc.Description, 40))
	}
	w.Flush()
	return nil
}

func runScriptRm(cmd *cobra.Command, args []string) error {
	name := args[0]

	if daemonRunning() {
		if _, err := apiDelete("/scripts/" + name); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", name)
		return nil
	}

	reg, err := scripts.Load(cfg.RegistryPath())
	if err != nil {
		return err
	}
	if err := reg.Remove(name); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", name)
	return nil
}

func runScriptCheck(cmd *cobra.Command, args []string) error {
	reg, err := scripts.Load(cfg.RegistryPath())
	if err != nil {
		return err
	}
	name, path, err := reg.Resolve(args[0])
	if err != nil {
		return err
	}

	if _, err := task.NewScriptTask(path); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("✓ %s is runnable (%s)\n", name, path)
	return nil
}
