package sdruntime

import "context"

// Backend produces a loaded Model. Load is called at most once per
// successful load by Runtime; a failed Load may be retried later.
type Backend interface {
	Name() string
	Load(ctx context.Context) (Model, error)
}

// Model turns validated parameters into encoded image bytes. Runtime never
// calls TextToImage concurrently on the same Model.
type Model interface {
	TextToImage(ctx context.Context, p GenerateParams) ([]byte, error)
	Close() error
}

// NullBackend is used when no image backend is configured. Every load fails
// with ErrModelUnavailable.
type NullBackend struct{}

// Name returns "null".
func (NullBackend) Name() string { return "null" }

// Load always fails.
func (NullBackend) Load(context.Context) (Model, error) {
	return nil, ErrModelUnavailable
}
