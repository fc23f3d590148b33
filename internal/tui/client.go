package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Tempora API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListRuns fetches runs from the API
func (c *Client) ListRuns(status string) ([]RunInfo, error) {
	path := "/runs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	body, err := c.get(path)
	if err != nil {
		return nil, err
	}

	var runs []struct {
		ID        string `json:"id"`
		Script    string `json:"script"`
		Path      string `json:"path"`
		Status    string `json:"status"`
		ExitCode  *int   `json:"exit_code"`
		Error     string `json:"error"`
		CreatedAt string `json:"created_at"`
		StartedAt string `json:"started_at"`
		EndedAt   string `json:"ended_at"`
	}
	if err := json.Unmarshal(body, &runs); err != nil {
		return nil, err
	}

	items := make([]RunInfo, len(runs))
	for i, r := range runs {
		items[i] = RunInfo{
			ID:        r.ID,
			Script:    r.Script,
			Path:      r.Path,
			Status:    r.Status,
			ExitCode:  r.ExitCode,
			Error:     r.Error,
			CreatedAt: r.CreatedAt,
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
		}
	}
	return items, nil
}

// GetRun fetches a single run
func (c *Client) GetRun(id string) (*RunInfo, error) {
	body, err := c.get("/runs/" + id)
	if err != nil {
		return nil, err
	}

	var r struct {
		ID        string `json:"id"`
		Script    string `json:"script"`
		Path      string `json:"path"`
		Status    string `json:"status"`
		ExitCode  *int   `json:"exit_code"`
		Error     string `json:"error"`
		CreatedAt string `json:"created_at"`
		StartedAt string `json:"started_at"`
		EndedAt   string `json:"ended_at"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}

	return &RunInfo{
		ID:        r.ID,
		Script:    r.Script,
		Path:      r.Path,
		Status:    r.Status,
		ExitCode:  r.ExitCode,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}, nil
}

// GetRunOutput fetches the captured stdout/stderr for a run
func (c *Client) GetRunOutput(id string) (*RunOutput, error) {
	body, err := c.get("/runs/" + id + "/output")
	if err != nil {
		return nil, err
	}

	var out struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &RunOutput{Stdout: out.Stdout, Stderr: out.Stderr}, nil
}

// SubmitRun queues a script for execution
func (c *Client) SubmitRun(script string) (string, error) {
	resp, err := c.post("/runs", map[string]string{"script": script})
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// KillRun stops a running or queued run
func (c *Client) KillRun(id string) error {
	_, err := c.post("/runs/"+id+"/kill", nil)
	return err
}

// ListScripts fetches the script registry
func (c *Client) ListScripts() ([]ScriptInfo, error) {
	body, err := c.get("/scripts")
	if err != nil {
		return nil, err
	}

	var scripts []struct {
		Name        string `json:"name"`
		Path        string `json:"path"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &scripts); err != nil {
		return nil, err
	}

	items := make([]ScriptInfo, len(scripts))
	for i, s := range scripts {
		items[i] = ScriptInfo{Name: s.Name, Path: s.Path, Description: s.Description}
	}
	return items, nil
}

// GetWeek fetches the availability week
func (c *Client) GetWeek() (*WeekInfo, error) {
	body, err := c.get("/week")
	if err != nil {
		return nil, err
	}

	var week struct {
		IntervalMinutes int `json:"interval_minutes"`
		BusyBlocks      int `json:"busy_blocks"`
		Days            []struct {
			Day       string `json:"day"`
			BusyCount int    `json:"busy_count"`
			FreeCount int    `json:"free_count"`
			Blocks    []struct {
				Start  string `json:"start"`
				End    string `json:"end"`
				Status string `json:"status"`
			} `json:"blocks"`
		} `json:"days"`
	}
	if err := json.Unmarshal(body, &week); err != nil {
		return nil, err
	}

	out := &WeekInfo{
		IntervalMinutes: week.IntervalMinutes,
		BusyBlocks:      week.BusyBlocks,
		Days:            make([]DayInfo, len(week.Days)),
	}
	for i, d := range week.Days {
		day := DayInfo{
			Day:       d.Day,
			BusyCount: d.BusyCount,
			FreeCount: d.FreeCount,
			Blocks:    make([]BlockInfo, len(d.Blocks)),
		}
		for j, b := range d.Blocks {
			day.Blocks[j] = BlockInfo{Start: b.Start, End: b.End, Status: b.Status}
		}
		out.Days[i] = day
	}
	return out, nil
}

// MarkBusy marks [start, end) busy on a day
func (c *Client) MarkBusy(day, start, end string) error {
	_, err := c.post("/week/busy", map[string]string{"day": day, "start": start, "end": end})
	return err
}

// MarkFree clears [start, end) on a day
func (c *Client) MarkFree(day, start, end string) error {
	_, err := c.post("/week/free", map[string]string{"day": day, "start": start, "end": end})
	return err
}

// CheckHealth fetches daemon health
func (c *Client) CheckHealth() (*HealthInfo, error) {
	body, err := c.get("/health")
	if err != nil {
		return nil, err
	}

	var health struct {
		OK      bool   `json:"ok"`
		Version string `json:"version"`
		Active  int    `json:"active_runs"`
		Max     int    `json:"max_runs"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, err
	}
	return &HealthInfo{OK: health.OK, Version: health.Version, Active: health.Active, Max: health.Max}, nil
}

func (c *Client) get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	} else {
		body = bytes.NewReader([]byte(`{}`))
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}
