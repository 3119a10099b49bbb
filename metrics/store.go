package metrics

import (
	"sync"
	"time"
)

// Store is an in-memory, concurrency-safe task metrics store: a ring buffer
// of recent records plus running per-type aggregates.
//
// Usage:
//
//	store := NewStore(DefaultStoreConfig(), time.Now())
//	store.RecordTask(StartTask(TaskTypeAcquire).Succeed())
//	m := store.GetTaskMetrics()
type Store struct {
	mu sync.RWMutex

	// Ring buffer of recent tasks
	history []TaskRecord
	cap     int
	head    int
	size    int

	totalTasks   int64
	totalSuccess int64
	totalErrors  int64
	byType       map[string]*taskTypeStats

	// consecutive acquisition failures, used for the health flag
	acquireFailStreak int
	degradedAfter     int

	startTime time.Time
	version   string
}

type taskTypeStats struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
	failures      map[string]int64
}

// StoreConfig configures the Store behavior.
type StoreConfig struct {
	// TaskHistoryCapacity is the max number of tasks to retain in history
	TaskHistoryCapacity int
	// Version is the application version string
	Version string
	// DegradedAfter is the number of consecutive failed acquisitions after
	// which the system reports itself degraded. Zero disables the check.
	DegradedAfter int
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TaskHistoryCapacity: 200,
		Version:             "0.0.0",
		DegradedAfter:       5,
	}
}

// NewStore creates a Store. startTime is used to calculate uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.TaskHistoryCapacity
	if capacity < 1 {
		capacity = 200
	}

	return &Store{
		history:       make([]TaskRecord, capacity),
		cap:           capacity,
		byType:        make(map[string]*taskTypeStats),
		degradedAfter: config.DegradedAfter,
		startTime:     startTime,
		version:       config.Version,
	}
}

// RecordTask adds a finished task.
func (s *Store) RecordTask(task TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = task
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.totalTasks++
	switch task.Status {
	case TaskStatusSuccess:
		s.totalSuccess++
	case TaskStatusError:
		s.totalErrors++
	}

	stats, ok := s.byType[task.Type]
	if !ok {
		stats = &taskTypeStats{failures: make(map[string]int64)}
		s.byType[task.Type] = stats
	}
	stats.count++
	stats.totalDuration += task.Duration
	if task.Status == TaskStatusSuccess {
		stats.successCount++
	} else if task.Code != "" {
		stats.failures[task.Code]++
	}

	if task.Type == TaskTypeAcquire {
		if task.Status == TaskStatusSuccess {
			s.acquireFailStreak = 0
		} else {
			s.acquireFailStreak++
		}
	}
}

// GetTaskMetrics returns aggregated task statistics.
func (s *Store) GetTaskMetrics() TaskMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := TaskMetrics{
		TotalProcessed: s.totalTasks,
		TotalSuccess:   s.totalSuccess,
		TotalErrors:    s.totalErrors,
		ByType:         make(map[string]*TaskTypeMetrics, len(s.byType)),
	}

	for taskType, stats := range s.byType {
		m := &TaskTypeMetrics{Count: stats.count}
		if stats.count > 0 {
			m.SuccessRate = float64(stats.successCount) / float64(stats.count) * 100
			m.AvgDuration = stats.totalDuration / time.Duration(stats.count)
		}
		if len(stats.failures) > 0 {
			m.Failures = make(map[string]int64, len(stats.failures))
			for code, n := range stats.failures {
				m.Failures[code] = n
			}
		}
		metrics.ByType[taskType] = m
	}

	return metrics
}

// GetRecentTasks returns up to limit records, oldest first.
func (s *Store) GetRecentTasks(limit int) []TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []TaskRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	result := make([]TaskRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - limit + i + s.cap) % s.cap
		result[i] = s.history[idx]
	}
	return result
}

// GetSystemStatus reports uptime and whether acquisitions keep failing.
func (s *Store) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	if s.degradedAfter > 0 && s.acquireFailStreak >= s.degradedAfter {
		health = SystemHealthDegraded
	}

	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    time.Since(s.startTime),
		LastCheck: time.Now(),
	}
}

var _ Collector = (*Store)(nil)
