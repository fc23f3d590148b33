package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkornelli/tempora/internal/controlplane"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

// resolveAPI fills apiAddr and apiToken. An explicit --api flag wins;
// otherwise the daemon contact file supplies both, and a config-derived
// address is the last resort.
func resolveAPI() {
	info, err := controlplane.ReadDaemonInfo(cfg.DaemonFile())
	if err == nil && info != nil {
		if apiAddr == "" {
			apiAddr = info.Addr
		}
		apiToken = info.Token
	}
	if apiAddr == "" {
		apiAddr = "http://" + cfg.Listen
	}
	if !strings.HasPrefix(apiAddr, "http://") && !strings.HasPrefix(apiAddr, "https://") {
		apiAddr = "http://" + apiAddr
	}
}

// apiGet performs a GET request to the API with timeout.
func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, apiAddr+path, nil)
	if err != nil {
		return nil, err
	}
	return apiDo(req)
}

// apiPost performs a POST request to the API with timeout.
func apiPost(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, apiAddr+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return apiDo(req)
}

// apiPostRaw posts an arbitrary payload, for endpoints that do not
// speak JSON.
func apiPostRaw(path, contentType string, data []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, apiAddr+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return apiDo(req)
}

// apiDelete performs a DELETE request to the API with timeout.
func apiDelete(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodDelete, apiAddr+path, nil)
	if err != nil {
		return nil, err
	}
	return apiDo(req)
}

func apiDo(req *http.Request) ([]byte, error) {
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// CheckHealth checks if the daemon is healthy and returns the health
// response. Unlike other API calls, this returns the parsed payload
// even on non-200 responses, allowing callers to inspect it alongside
// the error.
func CheckHealth() (*HealthResponse, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiAddr + "/health")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	// Return both payload and error on non-200 status
	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}

	return &health, nil
}

// daemonRunning reports whether the daemon answers its health check.
func daemonRunning() bool {
	health, err := CheckHealth()
	return err == nil && health != nil && health.OK
}

// HealthResponse matches the server's health response structure.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Active  int    `json:"active_runs"`
	Max     int    `json:"max_runs"`
	Time    string `json:"time"`
}
