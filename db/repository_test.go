package db

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRepository_InsertAndQuery(t *testing.T) {
	d := openTestDB(t)
	repo := NewRepository(d, nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	records := []HistoryRecord{
		{TaskID: "t1", TaskType: "synthesize", SessionID: "s1", Status: "success", DurationMS: 2, StartedAt: base},
		{TaskID: "t2", TaskType: "acquire", SessionID: "s1", SceneIndex: 2, Status: "error",
			Code: "model_unavailable", ErrorMessage: "no model", DurationMS: 40, StartedAt: base.Add(time.Second)},
		{TaskID: "t3", TaskType: "compose", Status: "success", StartedAt: base.Add(2 * time.Second)},
	}
	for _, rec := range records {
		id, err := repo.InsertTaskHistory(ctx, rec)
		if err != nil {
			t.Fatalf("InsertTaskHistory(%s) error = %v", rec.TaskID, err)
		}
		if id == 0 {
			t.Errorf("InsertTaskHistory(%s) returned id 0 for a synchronous insert", rec.TaskID)
		}
	}

	n, err := repo.CountTaskHistory(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountTaskHistory() = %d, %v", n, err)
	}

	recent, err := repo.QueryRecentHistory(ctx, 2)
	if err != nil {
		t.Fatalf("QueryRecentHistory() error = %v", err)
	}
	if len(recent) != 2 || recent[0].TaskID != "t3" || recent[1].TaskID != "t2" {
		t.Fatalf("QueryRecentHistory() = %+v", recent)
	}
	got := recent[1]
	if got.Code != "model_unavailable" || got.ErrorMessage != "no model" || got.SceneIndex != 2 || got.DurationMS != 40 {
		t.Errorf("round-tripped record = %+v", got)
	}
	if got.StartedAt.IsZero() || got.CreatedAt.IsZero() {
		t.Errorf("timestamps not parsed: %+v", got)
	}
	if recent[0].SessionID != "" || recent[0].Code != "" {
		t.Errorf("NULL columns should read back empty: %+v", recent[0])
	}

	bySession, err := repo.QueryHistoryBySession(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("QueryHistoryBySession() error = %v", err)
	}
	if len(bySession) != 2 {
		t.Errorf("QueryHistoryBySession() returned %d records, want 2", len(bySession))
	}
}

func TestRepository_InsertRejectsIncompleteRecords(t *testing.T) {
	repo := NewRepository(openTestDB(t), nil)

	tests := []struct {
		name string
		rec  HistoryRecord
	}{
		{"no task id", HistoryRecord{TaskType: "acquire", Status: "success"}},
		{"no type", HistoryRecord{TaskID: "x", Status: "success"}},
		{"no status", HistoryRecord{TaskID: "x", TaskType: "acquire"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.InsertTaskHistory(context.Background(), tt.rec); err == nil {
				t.Error("InsertTaskHistory() expected error")
			}
		})
	}
}

func TestRepository_AsyncInsert(t *testing.T) {
	d := openTestDB(t)
	repo := NewRepository(d, nil)
	var errs []error
	writer := NewAsyncWriter(repo.AsyncWriteHandler(), 16, func(err error) { errs = append(errs, err) })
	repo = NewRepository(d, writer)
	writer.Start()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		id, err := repo.InsertTaskHistory(ctx, HistoryRecord{
			TaskID: fmt.Sprintf("t%d", i), TaskType: "acquire", Status: "success",
		})
		if err != nil || id != 0 {
			t.Fatalf("InsertTaskHistory() = %d, %v; want a queued insert", id, err)
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := writer.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("async handler errors: %v", errs)
	}

	n, err := repo.CountTaskHistory(ctx)
	if err != nil || n != 10 {
		t.Errorf("CountTaskHistory() = %d, %v; want 10", n, err)
	}
}

func TestParseSQLiteTime(t *testing.T) {
	want := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	for _, s := range []string{"2026-03-04 05:06:07", "2026-03-04T05:06:07Z"} {
		if got := parseSQLiteTime(s); !got.Equal(want) {
			t.Errorf("parseSQLiteTime(%q) = %v", s, got)
		}
	}
	if !parseSQLiteTime("yesterday").IsZero() {
		t.Error("parseSQLiteTime(garbage) should be zero")
	}
}
