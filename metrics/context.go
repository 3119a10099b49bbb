package metrics

import "context"

// TaskInfo identifies what a task ran for. It travels in the context so
// lower layers can stamp records without knowing about sessions.
type TaskInfo struct {
	SessionID  string
	SceneIndex int
}

type taskInfoKey struct{}

// WithTaskInfo attaches info to ctx.
func WithTaskInfo(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, taskInfoKey{}, info)
}

// TaskInfoFrom returns the info attached to ctx, or the zero value.
func TaskInfoFrom(ctx context.Context) TaskInfo {
	info, _ := ctx.Value(taskInfoKey{}).(TaskInfo)
	return info
}

// StartTaskContext is StartTask with the session and scene taken from ctx.
func StartTaskContext(ctx context.Context, taskType string) TaskRecord {
	r := StartTask(taskType)
	info := TaskInfoFrom(ctx)
	r.SessionID = info.SessionID
	r.SceneIndex = info.SceneIndex
	return r
}
