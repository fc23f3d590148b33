package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkornelli/tempora/internal/schedule"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Inspect and edit the availability calendar",
}

var weekShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the weekly availability calendar",
	RunE:  runWeekShow,
}

var weekBusyCmd = &cobra.Command{
	Use:   "busy [day] [start] [end]",
	Short: "Mark a time range busy",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markWeekRange(args, "busy")
	},
}

var weekFreeCmd = &cobra.Command{
	Use:   "free [day] [start] [end]",
	Short: "Mark a time range free",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markWeekRange(args, "free")
	},
}

var weekDayCmd = &cobra.Command{
	Use:   "day [weekday]",
	Short: "Show one day of the calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runWeekDay,
}

var weekStatusCmd = &cobra.Command{
	Use:   "status [weekday] [time]",
	Short: "Report the block status at a time of day",
	Args:  cobra.ExactArgs(2),
	RunE:  runWeekStatus,
}

func init() {
	weekCmd.AddCommand(weekShowCmd, weekBusyCmd, weekFreeCmd, weekDayCmd, weekStatusCmd)
}

// Wire shapes shared with the server.
type blockDTO struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

type dayDTO struct {
	Day       string     `json:"day"`
	BusyCount int        `json:"busy_count"`
	FreeCount int        `json:"free_count"`
	Blocks    []blockDTO `json:"blocks"`
}

type weekDTO struct {
	IntervalMinutes int      `json:"interval_minutes"`
	BusyBlocks      int      `json:"busy_blocks"`
	Days            []dayDTO `json:"days"`
}

func runWeekShow(cmd *cobra.Command, args []string) error {
	week, err := fetchWeek()
	if err != nil {
		return err
	}

	fmt.Printf("Availability (%d-minute blocks, %d busy)\n\n", week.IntervalMinutes, week.BusyBlocks)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tBUSY\tFREE\tBUSY SPANS")
	for _, d := range week.Days {
		label := strings.Join(busySpanList(d.Blocks), ", ")
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", d.Day, d.BusyCount, d.FreeCount, label)
	}
	w.Flush()
	return nil
}

func markWeekRange(args []string, status string) error {
	if !daemonRunning() {
		return fmt.Errorf("daemon not running; recurring windows belong in the config file under busy:")
	}

	resp, err := apiPost("/week/"+status, map[string]string{
		"day": args[0], "start": args[1], "end": args[2],
	})
	if err != nil {
		return err
	}

	var day dayDTO
	if err := json.Unmarshal(resp, &day); err != nil {
		return err
	}
	fmt.Printf("Marked %s %s-%s %s (%d busy blocks on %s)\n",
		args[0], args[1], args[2], status, day.BusyCount, day.Day)
	return nil
}

func runWeekDay(cmd *cobra.Command, args []string) error {
	var day dayDTO

	if daemonRunning() {
		resp, err := apiGet("/week/day/" + args[0])
		if err != nil {
			return err
		}
		if err := json.Unmarshal(resp, &day); err != nil {
			return err
		}
	} else {
		week, err := fetchWeek()
		if err != nil {
			return err
		}
		wd, err := schedule.ParseWeekday(args[0])
		if err != nil {
			return err
		}
		name := strings.ToLower(wd.String())
		for _, d := range week.Days {
			if d.Day == name {
				day = d
				break
			}
		}
	}

	fmt.Printf("%s: %d busy, %d free\n", day.Day, day.BusyCount, day.FreeCount)
	for _, span := range busySpanList(day.Blocks) {
		fmt.Printf("  %s busy\n", span)
	}
	return nil
}

func runWeekStatus(cmd *cobra.Command, args []string) error {
	if daemonRunning() {
		resp, err := apiGet("/week/status?day=" + args[0] + "&at=" + args[1])
		if err != nil {
			return err
		}
		var status struct {
			Day    string `json:"day"`
			At     string `json:"at"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(resp, &status); err != nil {
			return err
		}
		fmt.Printf("%s %s: %s\n", status.Day, status.At, status.Status)
		return nil
	}

	// Daemon down: answer from the config template.
	week, err := cfg.Week()
	if err != nil {
		return err
	}
	wd, err := schedule.ParseWeekday(args[0])
	if err != nil {
		return err
	}
	at, err := schedule.ParseTimeOfDay(args[1])
	if err != nil {
		return err
	}
	status, err := week.Day(wd).StatusAt(at)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %s\n", args[0], args[1], status)
	return nil
}

// fetchWeek reads the live calendar from the daemon, falling back to
// the config template when the daemon is down.
func fetchWeek() (*weekDTO, error) {
	if daemonRunning() {
		resp, err := apiGet("/week")
		if err != nil {
			return nil, err
		}
		var week weekDTO
		if err := json.Unmarshal(resp, &week); err != nil {
			return nil, err
		}
		return &week, nil
	}

	week, err := cfg.Week()
	if err != nil {
		return nil, err
	}
	return localWeekDTO(week), nil
}

// localWeekDTO mirrors the server's wire shape for a local week.
func localWeekDTO(week *schedule.Week) *weekDTO {
	out := &weekDTO{
		IntervalMinutes: week.Interval().Minutes(),
		BusyBlocks:      week.BusyCount(),
	}
	for _, wd := range schedule.Weekdays() {
		day := week.Day(wd)
		d := dayDTO{
			Day:       strings.ToLower(wd.String()),
			BusyCount: day.BusyCount(),
			FreeCount: day.FreeCount(),
		}
		for _, b := range day.Blocks() {
			d.Blocks = append(d.Blocks, blockDTO{
				Start:  b.Start.String(),
				End:    b.End.String(),
				Status: string(b.Status),
			})
		}
		out.Days = append(out.Days, d)
	}
	return out
}

// busySpanList merges consecutive busy blocks into HH:MM-HH:MM labels.
func busySpanList(blocks []blockDTO) []string {
	var spans []string
	i := 0
	for i < len(blocks) {
		if blocks[i].Status != "busy" {
			i++
			continue
		}
		j := i + 1
		for j < len(blocks) && blocks[j].Status == "busy" {
			j++
		}
		end := "24:00"
		if j < len(blocks) {
			end = hourMinute(blocks[j].Start)
		}
		spans = append(spans, fmt.Sprintf("%s-%s", hourMinute(blocks[i].Start), end))
		i = j
	}
	return spans
}

// hourMinute trims "HH:MM:SS" down to "HH:MM".
func hourMinute(s string) string {
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}
