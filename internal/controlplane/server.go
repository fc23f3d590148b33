package controlplane

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mkornelli/tempora/internal/logx"
	"github.com/mkornelli/tempora/internal/models"
	"github.com/mkornelli/tempora/internal/schedule"
	"github.com/mkornelli/tempora/internal/scripts"
	"github.com/mkornelli/tempora/internal/store"
	"github.com/mkornelli/tempora/internal/task"
)

// Server provides the HTTP API for Tempora.
type Server struct {
	service *Service
	store   *store.Store
	addr    string
	token   string
	version string
	log     logx.Logger
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, st *store.Store, addr string) *Server {
	return &Server{
		service: service,
		store:   st,
		addr:    addr,
		version: "dev",
		log:     logx.Nop(),
	}
}

// SetAuthToken requires a bearer token on every endpoint except
// /health. An empty token disables authentication.
func (s *Server) SetAuthToken(token string) { s.token = token }

// SetVersion sets the version reported by /health.
func (s *Server) SetVersion(v string) {
	if v != "" {
		s.version = v
	}
}

// SetLogger replaces the no-op default.
func (s *Server) SetLogger(log logx.Logger) { s.log = log }

// Start starts the HTTP server and blocks until it shuts down.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Run endpoints
	mux.HandleFunc("/runs", s.requireAuth(s.handleRuns))
	mux.HandleFunc("/runs/", s.requireAuth(s.handleRunByID))

	// Script registry endpoints
	mux.HandleFunc("/scripts", s.requireAuth(s.handleScripts))
	mux.HandleFunc("/scripts/", s.requireAuth(s.handleScriptByName))

	// Availability calendar endpoints
	mux.HandleFunc("/week", s.requireAuth(s.handleWeek))
	mux.HandleFunc("/week/busy", s.requireAuth(s.handleWeekBusy))
	mux.HandleFunc("/week/free", s.requireAuth(s.handleWeekFree))
	mux.HandleFunc("/week/day/", s.requireAuth(s.handleWeekDay))
	mux.HandleFunc("/week/status", s.requireAuth(s.handleWeekStatus))
	mux.HandleFunc("/week/ics", s.requireAuth(s.handleWeekICS))

	// Health check stays unauthenticated for probes.
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Info("http server listening", logx.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireAuth checks the bearer token when one is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Active  int    `json:"active_runs"`
	Max     int    `json:"max_runs"`
	Time    string `json:"time"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	health.Active, health.Max = s.service.RunnerStats()

	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		health.OK = false
		health.DB = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(health)
}

// handleRuns handles POST /runs and GET /runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitRun(w, r)
	case http.MethodGet:
		s.listRuns(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunByID handles /runs/{id}/*
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/runs/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}

	runID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getRun(w, r, runID)
	case action == "kill" && r.Method == http.MethodPost:
		s.killRun(w, r, runID)
	case action == "output" && r.Method == http.MethodGet:
		s.getRunOutput(w, r, runID)
	case action == "events" && r.Method == http.MethodGet:
		s.getRunEvents(w, r, runID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// --- Run Handlers ---

type submitRunRequest struct {
	Script string `json:"script"`
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Script == "" {
		http.Error(w, "script required", http.StatusBadRequest)
		return
	}

	run, err := s.service.SubmitRun(req.Script)
	if err != nil {
		http.Error(w, err.Error(), scriptErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(run)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.service.ListRuns(status, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if runs == nil {
		runs = []models.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.service.GetRun(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func (s *Server) killRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.service.KillRun(runID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case err == ErrRunNotFound:
			status = http.StatusNotFound
		case err == ErrRunAlreadyDone, isNotQueued(err):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

type runOutputResponse struct {
	RunID  string `json:"run_id"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

func (s *Server) getRunOutput(w http.ResponseWriter, r *http.Request, runID string) {
	stdout, stderr, err := s.service.RunOutput(runID)
	if err != nil {
		status := http.StatusInternalServerError
		if err == ErrRunNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runOutputResponse{RunID: runID, Stdout: stdout, Stderr: stderr})
}

func (s *Server) getRunEvents(w http.ResponseWriter, r *http.Request, runID string) {
	events, err := s.service.RunEvents(runID)
	if err != nil {
		status := http.StatusInternalServerError
		if err == ErrRunNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	if events == nil {
		events = []models.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// --- Script Handlers ---

// handleScripts handles POST /scripts and GET /scripts
func (s *Server) handleScripts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.addScript(w, r)
	case http.MethodGet:
		s.listScripts(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type addScriptRequest struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

func (s *Server) addScript(w http.ResponseWriter, r *http.Request) {
	var req addScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	script, err := s.service.AddScript(req.Name, req.Path, req.Description)
	if err != nil {
		status := scriptErrorStatus(err)
		if err == scripts.ErrAlreadyRegistered {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(script)
}

func (s *Server) listScripts(w http.ResponseWriter, r *http.Request) {
	list := s.service.ListScripts()
	if list == nil {
		list = []models.Script{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// handleScriptByName handles /scripts/{name}
func (s *Server) handleScriptByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/scripts/")
	if name == "" {
		http.Error(w, "script name required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		script, ok := s.service.GetScript(name)
		if !ok {
			http.Error(w, "script not registered", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(script)
	case http.MethodDelete:
		if err := s.service.RemoveScript(name); err != nil {
			status := http.StatusInternalServerError
			if err == scripts.ErrNotRegistered {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"removed"}`))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Calendar Handlers ---

type blockJSON struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

type dayJSON struct {
	Day       string      `json:"day"`
	BusyCount int         `json:"busy_count"`
	FreeCount int         `json:"free_count"`
	Blocks    []blockJSON `json:"blocks"`
}

type weekJSON struct {
	IntervalMinutes int       `json:"interval_minutes"`
	BusyBlocks      int       `json:"busy_blocks"`
	Days            []dayJSON `json:"days"`
}

func toDayJSON(wd time.Weekday, d *schedule.Day) dayJSON {
	blocks := d.Blocks()
	out := dayJSON{
		Day:       strings.ToLower(wd.String()),
		BusyCount: d.BusyCount(),
		FreeCount: d.FreeCount(),
		Blocks:    make([]blockJSON, 0, len(blocks)),
	}
	for _, b := range blocks {
		out.Blocks = append(out.Blocks, blockJSON{
			Start:  b.Start.String(),
			End:    b.End.String(),
			Status: string(b.Status),
		})
	}
	return out
}

func toWeekJSON(w *schedule.Week) weekJSON {
	out := weekJSON{
		IntervalMinutes: w.Interval().Minutes(),
		BusyBlocks:      w.BusyCount(),
		Days:            make([]dayJSON, 0, 7),
	}
	for _, wd := range schedule.Weekdays() {
		out.Days = append(out.Days, toDayJSON(wd, w.Day(wd)))
	}
	return out
}

// handleWeek handles GET /week
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toWeekJSON(s.service.WeekSnapshot()))
}

type markRequest struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// handleWeekBusy handles POST /week/busy
func (s *Server) handleWeekBusy(w http.ResponseWriter, r *http.Request) {
	s.markWeek(w, r, schedule.StatusBusy)
}

// handleWeekFree handles POST /week/free
func (s *Server) handleWeekFree(w http.ResponseWriter, r *http.Request) {
	s.markWeek(w, r, schedule.StatusFree)
}

func (s *Server) markWeek(w http.ResponseWriter, r *http.Request, status schedule.BlockStatus) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.service.MarkWeek(req.Day, req.Start, req.End, status); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wd, _ := schedule.ParseWeekday(req.Day)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDayJSON(wd, s.service.DaySnapshot(wd)))
}

// handleWeekDay handles GET /week/day/{weekday}
func (s *Server) handleWeekDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/week/day/")
	wd, err := schedule.ParseWeekday(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDayJSON(wd, s.service.DaySnapshot(wd)))
}

// Calendars beyond this size are rejected outright.
const maxICSBytes = 1 << 20

// handleWeekICS handles GET /week/ics (export) and POST /week/ics (import)
func (s *Server) handleWeekICS(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Write([]byte(s.service.ExportICS()))
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxICSBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		applied, err := s.service.ImportICS(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"applied": applied})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type weekStatusResponse struct {
	Day    string `json:"day"`
	At     string `json:"at"`
	Status string `json:"status"`
}

// handleWeekStatus handles GET /week/status?day=X&at=HH:MM
func (s *Server) handleWeekStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day := r.URL.Query().Get("day")
	at := r.URL.Query().Get("at")
	if day == "" || at == "" {
		http.Error(w, "day and at required", http.StatusBadRequest)
		return
	}

	status, err := s.service.WeekStatusAt(day, at)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(weekStatusResponse{Day: day, At: at, Status: string(status)})
}

// scriptErrorStatus maps script validation failures to 400s.
func scriptErrorStatus(err error) int {
	switch {
	case errors.Is(err, task.ErrScriptNotFound),
		errors.Is(err, task.ErrNotRegularFile),
		errors.Is(err, task.ErrNotExecutable),
		errors.Is(err, scripts.ErrNotRegistered):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isNotQueued(err error) bool {
	return errors.Is(err, store.ErrRunNotQueued)
}
