package webui

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storybook/db"
	"storybook/metrics"
	"storybook/webui/auth"
)

// ModelStatus reports the image backend. *sdruntime.Runtime satisfies it.
type ModelStatus interface {
	BackendName() string
	Loaded() bool
}

// HistorySource reads the persisted task log. *db.Repository satisfies it.
type HistorySource interface {
	QueryRecentHistory(ctx context.Context, limit int) ([]db.HistoryRecord, error)
}

// OperationCounter reports in-flight work. *shutdown.Manager satisfies it.
type OperationCounter interface {
	ActiveOperations() int
}

// DashboardAPI serves health, status and task metrics.
type DashboardAPI struct {
	store        metrics.Collector
	model        ModelStatus
	history      HistorySource
	operations   OperationCounter
	sessionCount func() int
	clientCount  func() int
	defaultLimit int
	maxLimit     int
	version      string
	guard        *auth.Guard
	logger       *zap.Logger
}

// DashboardAPIConfig configures list limits and the reported version.
type DashboardAPIConfig struct {
	DefaultLimit int
	MaxLimit     int
	Version      string
}

// DefaultDashboardAPIConfig returns a default configuration.
func DefaultDashboardAPIConfig() DashboardAPIConfig {
	return DashboardAPIConfig{DefaultLimit: 20, MaxLimit: 100, Version: "dev"}
}

// DashboardSources are the optional read sides behind the status
// endpoints. Nil fields are reported as absent.
type DashboardSources struct {
	Model        ModelStatus
	History      HistorySource
	Operations   OperationCounter
	SessionCount func() int
	ClientCount  func() int
}

// NewDashboardAPI creates the status handlers over store.
func NewDashboardAPI(store metrics.Collector, src DashboardSources, config DashboardAPIConfig, logger *zap.Logger) *DashboardAPI {
	if config.DefaultLimit < 1 {
		config.DefaultLimit = 20
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardAPI{
		store:        store,
		model:        src.Model,
		history:      src.History,
		operations:   src.Operations,
		sessionCount: src.SessionCount,
		clientCount:  src.ClientCount,
		defaultLimit: config.DefaultLimit,
		maxLimit:     config.MaxLimit,
		version:      config.Version,
		logger:       logger,
	}
}

// RequireLogin puts /api/status and /api/tasks behind g. Call it before
// RegisterRoutes. /health stays open.
func (api *DashboardAPI) RequireLogin(g *auth.Guard) {
	api.guard = g
}

// RegisterRoutes registers /health, /api/status and /api/tasks, plus
// /api/login and /api/logout when a guard is set.
func (api *DashboardAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", api.HandleHealth)
	if api.guard == nil {
		mux.HandleFunc("GET /api/status", api.HandleStatus)
		mux.HandleFunc("GET /api/tasks", api.HandleTasks)
		return
	}
	mux.HandleFunc("GET /api/status", api.guard.Protect(api.HandleStatus))
	mux.HandleFunc("GET /api/tasks", api.guard.Protect(api.HandleTasks))
	mux.HandleFunc("POST /api/login", api.guard.Login)
	mux.HandleFunc("POST /api/logout", api.guard.Logout)
}

// HandleHealth is a liveness probe.
func (api *DashboardAPI) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Health           string    `json:"health"`
	Version          string    `json:"version"`
	Uptime           string    `json:"uptime"`
	UptimeSecs       float64   `json:"uptime_secs"`
	LastCheck        time.Time `json:"last_check"`
	Backend          string    `json:"backend"`
	ModelLoaded      bool      `json:"model_loaded"`
	Sessions         int       `json:"sessions"`
	WebSocketClients int       `json:"websocket_clients"`
	ActiveOperations int       `json:"active_operations"`
	HistoryEnabled   bool      `json:"history_enabled"`
}

// HandleStatus handles GET /api/status.
func (api *DashboardAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := api.store.GetSystemStatus()
	resp := StatusResponse{
		Health:         status.Health,
		Version:        api.version,
		Uptime:         formatUptime(status.Uptime),
		UptimeSecs:     status.Uptime.Seconds(),
		LastCheck:      status.LastCheck,
		Backend:        "none",
		HistoryEnabled: api.history != nil,
	}
	if api.model != nil {
		resp.Backend = api.model.BackendName()
		resp.ModelLoaded = api.model.Loaded()
	}
	if api.sessionCount != nil {
		resp.Sessions = api.sessionCount()
	}
	if api.clientCount != nil {
		resp.WebSocketClients = api.clientCount()
	}
	if api.operations != nil {
		resp.ActiveOperations = api.operations.ActiveOperations()
	}
	writeJSON(w, http.StatusOK, resp)
}

// TasksResponse is the body of GET /api/tasks.
type TasksResponse struct {
	Source  string               `json:"source"`
	Tasks   []metrics.TaskRecord `json:"tasks,omitempty"`
	History []HistoryJSON        `json:"history,omitempty"`
	Count   int                  `json:"count"`
	Limit   int                  `json:"limit"`
	Metrics metrics.TaskMetrics  `json:"metrics"`
}

// HistoryJSON is the wire form of a persisted task record.
type HistoryJSON struct {
	TaskID     string    `json:"task_id"`
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	SceneIndex int       `json:"scene_index,omitempty"`
	Status     string    `json:"status"`
	Code       string    `json:"code,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// HandleTasks handles GET /api/tasks. ?limit= bounds the list and
// ?source=history reads the persisted log instead of memory.
func (api *DashboardAPI) HandleTasks(w http.ResponseWriter, r *http.Request) {
	limit := api.defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > api.maxLimit {
		limit = api.maxLimit
	}

	resp := TasksResponse{Source: "memory", Limit: limit, Metrics: api.store.GetTaskMetrics()}

	if strings.EqualFold(r.URL.Query().Get("source"), "history") {
		if api.history == nil {
			writeError(w, http.StatusNotFound, CodeNotFound, "task history is not enabled")
			return
		}
		records, err := api.history.QueryRecentHistory(r.Context(), limit)
		if err != nil {
			api.logger.Error("failed to read task history", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, CodeInternal, "task history unavailable")
			return
		}
		resp.Source = "history"
		resp.History = make([]HistoryJSON, len(records))
		for i, rec := range records {
			resp.History[i] = HistoryJSON{
				TaskID:     rec.TaskID,
				Type:       rec.TaskType,
				SessionID:  rec.SessionID,
				SceneIndex: rec.SceneIndex,
				Status:     rec.Status,
				Code:       rec.Code,
				Error:      rec.ErrorMessage,
				DurationMS: rec.DurationMS,
				StartedAt:  rec.StartedAt,
			}
		}
		resp.Count = len(records)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Tasks = api.store.GetRecentTasks(limit)
	resp.Count = len(resp.Tasks)
	writeJSON(w, http.StatusOK, resp)
}

var uptimeUnits = []struct {
	suffix string
	size   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// formatUptime renders at most the two largest non-zero units, e.g.
// "3d 4h" or "12m 5s".
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	var parts []string
	for i, u := range uptimeUnits {
		n := d / u.size
		d -= n * u.size
		if n == 0 && len(parts) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
		if len(parts) == 2 || i == len(uptimeUnits)-1 {
			break
		}
	}
	return strings.Join(parts, " ")
}
