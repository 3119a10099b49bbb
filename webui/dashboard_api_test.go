package webui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storybook/db"
	"storybook/metrics"
	"storybook/webui/auth"
)

type fakeHistory struct {
	records []db.HistoryRecord
	err     error
	limit   int
}

func (f *fakeHistory) QueryRecentHistory(ctx context.Context, limit int) ([]db.HistoryRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fixedOps int

func (n fixedOps) ActiveOperations() int { return int(n) }

func newDashboard(t *testing.T, src DashboardSources) (*http.ServeMux, *metrics.Store) {
	t.Helper()
	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now().Add(-90*time.Second))
	mux := http.NewServeMux()
	NewDashboardAPI(store, src, DashboardAPIConfig{DefaultLimit: 2, MaxLimit: 3, Version: "1.2.3"}, nil).RegisterRoutes(mux)
	return mux, store
}

func serve(t *testing.T, h http.Handler, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Result()
}

func TestDashboard_Health(t *testing.T) {
	mux, _ := newDashboard(t, DashboardSources{})
	resp := serve(t, mux, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decodeJSON[map[string]string](t, resp); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestDashboard_Status(t *testing.T) {
	model := &fakeModel{}
	model.loaded.Store(true)
	mux, _ := newDashboard(t, DashboardSources{
		Model:        model,
		History:      &fakeHistory{},
		Operations:   fixedOps(2),
		SessionCount: func() int { return 4 },
		ClientCount:  func() int { return 1 },
	})

	got := decodeJSON[StatusResponse](t, serve(t, mux, "/api/status"))
	if got.Version != "1.2.3" || got.Backend != "fake" || !got.ModelLoaded {
		t.Errorf("model fields = %+v", got)
	}
	if got.Sessions != 4 || got.WebSocketClients != 1 || got.ActiveOperations != 2 || !got.HistoryEnabled {
		t.Errorf("counters = %+v", got)
	}
	if got.UptimeSecs < 90 || got.Uptime == "" || got.Health == "" {
		t.Errorf("uptime/health = %+v", got)
	}
}

func TestDashboard_StatusWithoutSources(t *testing.T) {
	mux, _ := newDashboard(t, DashboardSources{})
	got := decodeJSON[StatusResponse](t, serve(t, mux, "/api/status"))
	if got.Backend != "none" || got.ModelLoaded || got.HistoryEnabled || got.Sessions != 0 {
		t.Errorf("status = %+v", got)
	}
}

func TestDashboard_TasksFromMemory(t *testing.T) {
	mux, store := newDashboard(t, DashboardSources{})
	for i := 0; i < 5; i++ {
		store.RecordTask(metrics.StartTask("image").Succeed())
	}
	store.RecordTask(metrics.StartTask("document").Fail("empty_document", "no scenes"))

	tests := []struct {
		query     string
		wantLimit int
	}{
		{"", 2},
		{"?limit=3", 3},
		{"?limit=50", 3},
		{"?limit=-1", 2},
		{"?limit=abc", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := decodeJSON[TasksResponse](t, serve(t, mux, "/api/tasks"+tt.query))
			if got.Source != "memory" || got.Limit != tt.wantLimit || got.Count != tt.wantLimit || len(got.Tasks) != tt.wantLimit {
				t.Errorf("response = source %q limit %d count %d tasks %d", got.Source, got.Limit, got.Count, len(got.Tasks))
			}
			if got.Metrics.TotalProcessed != 6 {
				t.Errorf("Metrics.TotalProcessed = %d, want 6", got.Metrics.TotalProcessed)
			}
		})
	}
}

func TestDashboard_TasksFromHistory(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{records: []db.HistoryRecord{
		{TaskID: "t1", TaskType: "image", SessionID: "s", SceneIndex: 2, Status: "error", Code: "timeout", ErrorMessage: "slow", DurationMS: 1500, StartedAt: started},
		{TaskID: "t2", TaskType: "document", Status: "success", StartedAt: started},
		{TaskID: "t3", TaskType: "image", Status: "success", StartedAt: started},
	}}
	mux, _ := newDashboard(t, DashboardSources{History: hist})

	got := decodeJSON[TasksResponse](t, serve(t, mux, "/api/tasks?source=history&limit=10"))
	if got.Source != "history" || hist.limit != 3 || got.Count != 3 {
		t.Fatalf("response = %+v, queried limit %d", got, hist.limit)
	}
	first := got.History[0]
	if first.TaskID != "t1" || first.SceneIndex != 2 || first.Code != "timeout" || first.Error != "slow" || !first.StartedAt.Equal(started) {
		t.Errorf("History[0] = %+v", first)
	}
	if len(got.Tasks) != 0 {
		t.Errorf("history response also carried %d memory tasks", len(got.Tasks))
	}
}

func TestDashboard_TasksHistoryUnavailable(t *testing.T) {
	mux, _ := newDashboard(t, DashboardSources{})
	expectError(t, serve(t, mux, "/api/tasks?source=history"), http.StatusNotFound, CodeNotFound)

	mux, _ = newDashboard(t, DashboardSources{History: &fakeHistory{err: errors.New("disk gone")}})
	expectError(t, serve(t, mux, "/api/tasks?source=history"), http.StatusServiceUnavailable, CodeInternal)
}

func TestDashboard_PasswordProtected(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *Deps) {
		cfg.DashboardPassword = "open sesame"
		cfg.DashboardAuth.Cost = auth.MinCost
		cfg.DashboardAuth.FailureDelay = 0
	})

	if resp := env.do(t, http.MethodGet, "/health", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want 200 without login", resp.StatusCode)
	}
	for _, path := range []string{"/api/status", "/api/tasks"} {
		expectError(t, env.do(t, http.MethodGet, path, nil), http.StatusUnauthorized, auth.CodeUnauthorized)
	}

	expectError(t, env.do(t, http.MethodPost, "/api/login", auth.LoginRequest{Password: "wrong"}),
		http.StatusUnauthorized, auth.CodeUnauthorized)
	if resp := env.do(t, http.MethodPost, "/api/login", auth.LoginRequest{Password: "open sesame"}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	for _, path := range []string{"/api/status", "/api/tasks"} {
		if resp := env.do(t, http.MethodGet, path, nil); resp.StatusCode != http.StatusOK {
			t.Errorf("%s after login status = %d", path, resp.StatusCode)
		}
	}

	if resp := env.do(t, http.MethodPost, "/api/logout", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	expectError(t, env.do(t, http.MethodGet, "/api/status", nil), http.StatusUnauthorized, auth.CodeUnauthorized)
}

func TestDashboard_OpenWithoutPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	if resp := env.do(t, http.MethodGet, "/api/status", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("/api/status status = %d, want 200", resp.StatusCode)
	}
	expectError(t, env.do(t, http.MethodPost, "/api/login", auth.LoginRequest{Password: "x"}), http.StatusNotFound, CodeNotFound)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{500 * time.Millisecond, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h 0m"},
		{3*time.Hour + 25*time.Minute + 10*time.Second, "3h 25m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatUptime(tt.d); got != tt.want {
				t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
