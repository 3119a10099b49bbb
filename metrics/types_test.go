package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStartTask(t *testing.T) {
	r := StartTask(TaskTypeCompose)
	if _, err := uuid.Parse(r.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", r.ID, err)
	}
	if r.Type != TaskTypeCompose || r.StartTime.IsZero() {
		t.Errorf("StartTask() = %+v", r)
	}
	if StartTask(TaskTypeCompose).ID == r.ID {
		t.Error("StartTask() reused an ID")
	}
}

func TestTaskRecord_SucceedAndFail(t *testing.T) {
	start := StartTask(TaskTypeAcquire)
	start.StartTime = start.StartTime.Add(-10 * time.Millisecond)

	ok := start.Succeed()
	if ok.Status != TaskStatusSuccess || ok.Duration < 10*time.Millisecond || ok.EndTime.Before(ok.StartTime) {
		t.Errorf("Succeed() = %+v", ok)
	}

	failed := start.Fail("timeout", "took too long")
	if failed.Status != TaskStatusError || failed.Code != "timeout" || failed.ErrorMsg != "took too long" {
		t.Errorf("Fail() = %+v", failed)
	}
	if start.Status != "" {
		t.Error("Succeed()/Fail() mutated the receiver")
	}
}

func TestTee(t *testing.T) {
	var a, b []TaskRecord
	rec := Tee(
		RecorderFunc(func(r TaskRecord) { a = append(a, r) }),
		nil,
		RecorderFunc(func(r TaskRecord) { b = append(b, r) }),
	)
	rec.RecordTask(TaskRecord{ID: "x"})
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("Tee delivered %d and %d records", len(a), len(b))
	}

	OrNop(nil).RecordTask(TaskRecord{})
}

func TestTaskInfoContext(t *testing.T) {
	ctx := WithTaskInfo(context.Background(), TaskInfo{SessionID: "s1", SceneIndex: 2})
	r := StartTaskContext(ctx, TaskTypeAcquire)
	if r.SessionID != "s1" || r.SceneIndex != 2 {
		t.Errorf("StartTaskContext() = %+v", r)
	}
	if (TaskInfoFrom(context.Background()) != TaskInfo{}) {
		t.Error("TaskInfoFrom(empty ctx) should be zero")
	}
}
