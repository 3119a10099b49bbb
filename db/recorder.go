package db

import (
	"context"

	"go.uber.org/zap"

	"storybook/metrics"
)

// HistoryRecorder is a metrics.Recorder that appends every task record to
// the history table.
type HistoryRecorder struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHistoryRecorder returns a recorder writing through repo.
func NewHistoryRecorder(repo *Repository, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{repo: repo, logger: logger.With(zap.String("component", "history"))}
}

// RecordTask implements metrics.Recorder. Failures are logged and never
// reach the caller.
func (h *HistoryRecorder) RecordTask(task metrics.TaskRecord) {
	if _, err := h.repo.InsertTaskHistory(context.Background(), FromTaskRecord(task)); err != nil {
		h.logger.Warn("failed to record task history",
			zap.String("task_id", task.ID),
			zap.String("task_type", task.Type),
			zap.Error(err))
	}
}

// FromTaskRecord converts a metrics record into a history row.
func FromTaskRecord(task metrics.TaskRecord) HistoryRecord {
	return HistoryRecord{
		TaskID:       task.ID,
		TaskType:     task.Type,
		SessionID:    task.SessionID,
		SceneIndex:   task.SceneIndex,
		Status:       task.Status,
		Code:         task.Code,
		ErrorMessage: task.ErrorMsg,
		DurationMS:   task.Duration.Milliseconds(),
		StartedAt:    task.StartTime,
	}
}

var _ metrics.Recorder = (*HistoryRecorder)(nil)
