package story

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is the sentinel every SynthesisError unwraps to.
var ErrInvalidParams = errors.New("story: invalid story parameters")

// SynthesisError reports malformed or out-of-range story parameters. It is
// returned before any scene is created.
type SynthesisError struct {
	Field  string // wire name of the offending parameter, may be empty
	Reason string
}

func (e *SynthesisError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidParams, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s", ErrInvalidParams, e.Field, e.Reason)
}

func (e *SynthesisError) Unwrap() error {
	return ErrInvalidParams
}

// IsSynthesisError reports whether err carries a *SynthesisError.
func IsSynthesisError(err error) (*SynthesisError, bool) {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr, true
	}
	return nil, false
}
