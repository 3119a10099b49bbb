package core

import (
	"context"
	"errors"
)

// Process exit codes. Signal codes follow the 128+N shell convention.
const (
	ExitCodeSuccess = 0

	ExitCodeError = 1

	// ExitCodeConfig is returned when configuration fails to load or validate.
	ExitCodeConfig = 2

	// ExitCodePartial is returned by the render command when the document was
	// written but one or more illustrations could not be acquired.
	ExitCodePartial = 3

	ExitCodeSIGINT = 130

	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a short label for logging.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodePartial:
		return "partial success"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// ExitCodeForError maps an error returned from a command to a process exit code.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if _, ok := IsConfigError(err); ok {
		return ExitCodeConfig
	}
	// Work abandoned because the signal context was canceled.
	if errors.Is(err, context.Canceled) {
		return ExitCodeSIGINT
	}
	return ExitCodeError
}
