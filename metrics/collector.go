package metrics

// Recorder accepts finished task records. Pipeline components depend on this
// rather than on Store so tests can pass a stub.
type Recorder interface {
	RecordTask(task TaskRecord)
}

// Collector is the read side used by the status endpoints.
type Collector interface {
	Recorder

	GetTaskMetrics() TaskMetrics
	GetRecentTasks(limit int) []TaskRecord
	GetSystemStatus() SystemStatus
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(TaskRecord)

// RecordTask calls f.
func (f RecorderFunc) RecordTask(task TaskRecord) { f(task) }

// Nop discards records.
var Nop Recorder = RecorderFunc(func(TaskRecord) {})

// Tee fans a record out to every non-nil recorder in order.
func Tee(recorders ...Recorder) Recorder {
	out := make([]Recorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return RecorderFunc(func(task TaskRecord) {
		for _, r := range out {
			r.RecordTask(task)
		}
	})
}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop
	}
	return r
}
