// Package validation runs the preflight checks shown by `storybook check`
// and before the HTTP service starts.
package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"storybook/core"
)

// ValidationStep is one preflight check and how it ended.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus is the state of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult is the outcome of a whole suite run. Warnings do not fail it.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// DefaultMinFreeDisk is the free space below which the disk step warns.
const DefaultMinFreeDisk = 100 * core.BytesPerMB

// ValidationSuite checks that a loaded configuration can actually run:
// the image backend, the log and history locations and the disk under them.
type ValidationSuite struct {
	cfg          *core.Config
	output       io.Writer
	connectivity *ConnectivityChecker
	envPath      string
	minFreeDisk  int64
	showProgress bool
	failFast     bool
}

// NewValidationSuite returns a suite for cfg that prints to stdout.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		cfg:          cfg,
		output:       os.Stdout,
		connectivity: NewConnectivityChecker(),
		envPath:      ".env",
		minFreeDisk:  DefaultMinFreeDisk,
		showProgress: true,
	}
}

// WithOutput sets the writer for progress output.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout bounds each network probe.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.connectivity.WithTimeout(timeout)
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops the run at the first failed step.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithEnvPath sets the .env location that is reported on.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.envPath = path
	return s
}

// WithMinFreeDisk sets the free-space warning threshold in bytes.
func (s *ValidationSuite) WithMinFreeDisk(bytes int64) *ValidationSuite {
	s.minFreeDisk = bytes
	return s
}

type check struct {
	name string
	fn   func(ctx context.Context) (StepStatus, string, error)
}

func (s *ValidationSuite) localChecks() []check {
	return []check{
		{"Environment File", s.checkEnvFile},
		{"Image Backend", s.checkBackendConfig},
		{"Output Locations", s.checkOutputPaths},
		{"Disk Space", s.checkDiskSpace},
	}
}

// Validate runs every check including a probe of the image backend. The
// probe is skipped when an earlier step failed.
func (s *ValidationSuite) Validate(ctx context.Context) SuiteResult {
	start := time.Now()
	if s.showProgress {
		s.printHeader("Storybook Preflight")
	}

	steps, stopped := s.run(ctx, s.localChecks())
	if !stopped {
		if hasFailed(steps) {
			steps = append(steps, s.skip("Backend Connectivity", "Skipped due to configuration errors"))
		} else {
			more, _ := s.run(ctx, []check{{"Backend Connectivity", s.checkConnectivity}})
			steps = append(steps, more...)
		}
	}

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// ValidateQuick runs the local checks only, with no network calls.
func (s *ValidationSuite) ValidateQuick(ctx context.Context) SuiteResult {
	start := time.Now()
	if s.showProgress {
		s.printHeader("Quick Configuration Check")
	}

	steps, _ := s.run(ctx, s.localChecks())

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *ValidationSuite) run(ctx context.Context, checks []check) ([]ValidationStep, bool) {
	steps := make([]ValidationStep, 0, len(checks))
	for _, c := range checks {
		step := s.runStep(ctx, c)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			return steps, true
		}
	}
	return steps, false
}

func (s *ValidationSuite) runStep(ctx context.Context, c check) ValidationStep {
	if s.showProgress {
		s.printStepStart(c.name)
	}

	start := time.Now()
	status, message, err := c.fn(ctx)
	step := ValidationStep{
		Name:    c.name,
		Status:  status,
		Message: message,
		Error:   err,
		Latency: time.Since(start),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *ValidationSuite) skip(name, message string) ValidationStep {
	step := ValidationStep{Name: name, Status: StepSkipped, Message: message}
	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func hasFailed(steps []ValidationStep) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return true
		}
	}
	return false
}

func buildResult(steps []ValidationStep, start time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(start),
		Success:    true,
	}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	// Overwrite the "running" line.
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprintf(s.output, "━━━ Preflight Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed, %d warnings, %v)",
			result.PassedSteps, result.TotalSteps, result.Warnings, result.Duration.Round(time.Millisecond))
		ok.Fprintln(s.output, " ━━━")
	} else {
		fail := color.New(color.FgRed, color.Bold)
		fail.Fprintf(s.output, "━━━ Preflight Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		fail.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// FirstError returns the error of the first failed step, or nil.
func (r SuiteResult) FirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a one-line description for logs.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Preflight passed: ")
	} else {
		sb.WriteString("Preflight failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}
