package imagegen

import "fmt"

// Code classifies an acquisition failure.
type Code string

const (
	CodeInvalidPrompt    Code = "invalid_prompt"
	CodeModelUnavailable Code = "model_unavailable"
	CodeGenerationFailed Code = "generation_failed"
	CodeInvalidOutput    Code = "invalid_output"
	CodeTimeout          Code = "timeout"
	CodeCanceled         Code = "canceled"
	CodeShuttingDown     Code = "shutting_down"
	CodeInternal         Code = "internal"
)

// Failure describes why no image was produced. It is carried as a value in
// Result, never returned as an error.
type Failure struct {
	Code  Code
	Cause string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a Failure from err, classifying it.
func NewFailure(err error) *Failure {
	return &Failure{Code: Classify(err), Cause: err.Error(), Err: err}
}

// PanicError wraps a value recovered from a backend panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("imagegen: backend panicked: %v", e.Value)
}
