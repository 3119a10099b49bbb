// Package metrics records pipeline task outcomes in memory for the status
// endpoints and, optionally, the audit history.
package metrics

import (
	"time"

	"github.com/google/uuid"
)

// TaskRecord represents a single pipeline task execution.
type TaskRecord struct {
	// ID is a random UUID assigned when the task starts
	ID string `json:"id"`

	// Type identifies the kind of task: synthesize, acquire or compose
	Type string `json:"type"`

	// SessionID is the story session the task ran for; empty for stateless calls
	SessionID string `json:"session_id,omitempty"`

	// SceneIndex is the 1-based scene the task touched, 0 when not scene-specific
	SceneIndex int `json:"scene_index,omitempty"`

	// Status is "success" or "error"
	Status string `json:"status"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Code is a machine-readable failure class, e.g. "model_unavailable"
	Code string `json:"code,omitempty"`

	// ErrorMsg contains error details if Status is "error"
	ErrorMsg string `json:"error_msg,omitempty"`
}

// StartTask returns a record for a task beginning now.
func StartTask(taskType string) TaskRecord {
	return TaskRecord{
		ID:        uuid.NewString(),
		Type:      taskType,
		StartTime: time.Now(),
	}
}

// Succeed stamps the record as successful.
func (r TaskRecord) Succeed() TaskRecord {
	r.finish()
	r.Status = TaskStatusSuccess
	return r
}

// Fail stamps the record as failed with a failure class and message.
func (r TaskRecord) Fail(code, msg string) TaskRecord {
	r.finish()
	r.Status = TaskStatusError
	r.Code = code
	r.ErrorMsg = msg
	return r
}

func (r *TaskRecord) finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// SystemStatus represents the overall service health.
type SystemStatus struct {
	// Health is "running" or "degraded"
	Health string `json:"health"`

	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	LastCheck time.Time     `json:"last_check"`
}

// TaskMetrics represents aggregated task statistics.
type TaskMetrics struct {
	TotalProcessed int64 `json:"total_processed"`
	TotalSuccess   int64 `json:"total_success"`
	TotalErrors    int64 `json:"total_errors"`

	// ByType contains per-type statistics
	ByType map[string]*TaskTypeMetrics `json:"by_type"`
}

// TaskTypeMetrics represents statistics for a specific task type.
type TaskTypeMetrics struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`

	// Failures counts failed tasks by Code
	Failures map[string]int64 `json:"failures,omitempty"`
}

// Status constants for TaskRecord
const (
	TaskStatusSuccess = "success"
	TaskStatusError   = "error"
)

// Health constants for SystemStatus
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
)

// Task type constants
const (
	TaskTypeSynthesize = "synthesize"
	TaskTypeAcquire    = "acquire"
	TaskTypeCompose    = "compose"
)
