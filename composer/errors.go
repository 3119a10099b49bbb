package composer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is returned when there are no scenes to compose.
	ErrEmptyDocument = errors.New("empty document")

	// ErrRenderFailed is wrapped by every CompositionError.
	ErrRenderFailed = errors.New("composer: render failed")
)

// CompositionError reports a PDF fault that prevented the document from
// being finalized. Page is the 1-based page being drawn, or 0 when the
// fault happened at output time.
type CompositionError struct {
	Page int
	Err  error
}

func (e *CompositionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%v: page %d: %v", ErrRenderFailed, e.Page, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrRenderFailed, e.Err)
}

func (e *CompositionError) Unwrap() []error {
	return []error{ErrRenderFailed, e.Err}
}
