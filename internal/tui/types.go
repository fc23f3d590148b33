package tui

// RunInfo is the full run record as served by the API
type RunInfo struct {
	ID        string
	Script    string
	Path      string
	Status    string
	ExitCode  *int
	Error     string
	CreatedAt string
	StartedAt string
	EndedAt   string
}

// RunOutput holds the captured sinks for a run
type RunOutput struct {
	Stdout string
	Stderr string
}

// ScriptInfo is a registry entry
type ScriptInfo struct {
	Name        string
	Path        string
	Description string
}

// BlockInfo is one calendar block
type BlockInfo struct {
	Start  string
	End    string
	Status string
}

// DayInfo is one day of the availability week
type DayInfo struct {
	Day       string
	BusyCount int
	FreeCount int
	Blocks    []BlockInfo
}

// WeekInfo is the whole availability week
type WeekInfo struct {
	IntervalMinutes int
	BusyBlocks      int
	Days            []DayInfo
}

// HealthInfo summarizes daemon health
type HealthInfo struct {
	OK      bool
	Version string
	Active  int
	Max     int
}
