// Package logging builds the zap logger shared by every storybook component.
//
// Records go to two cores: a console core (colored, human-readable in
// development, JSON otherwise) and a JSON file core rotated by lumberjack.
// Both sit behind a redacting core so API keys never reach either sink,
// regardless of whether the caller logs through *Logger or the raw
// *zap.Logger handed to subsystems.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures NewLogger.
type Options struct {
	// Level is the minimum enabled level. Development forces Debug.
	Level zapcore.Level

	// Development switches the console to colored console encoding.
	Development bool

	// FilePath is the rotated JSON log file. Empty disables the file core.
	FilePath string

	// File tunes rotation; zero values take package defaults.
	File FileWriterConfig

	// Console overrides stdout, mostly for tests.
	Console io.Writer
}

// Logger wraps *zap.Logger with the level handle and the settings it was
// built from. All zap.Logger methods are promoted.
type Logger struct {
	*zap.Logger

	level         zap.AtomicLevel
	isDevelopment bool
	logFilePath   string
}

// NewLogger builds a Logger from opts.
func NewLogger(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(opts.Level)
	if opts.Development {
		level.SetLevel(zapcore.DebugLevel)
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	var fileWriter zapcore.WriteSyncer
	if opts.FilePath != "" {
		fileWriter = NewFileWriterWithConfig(opts.FilePath, opts.File)
	}

	core, err := NewMultiCore(level, consoleWriterSync{console}, fileWriter, opts.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create log core: %w", err)
	}

	zapLogger := zap.New(NewRedactingCore(core), zap.AddCaller())

	return &Logger{
		Logger:        zapLogger,
		level:         level,
		isDevelopment: opts.Development,
		logFilePath:   opts.FilePath,
	}, nil
}

// Wrap adapts an existing zap logger (zaptest, zap.NewNop) to *Logger.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{
		Logger: z,
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

// Zap returns the underlying *zap.Logger for subsystems that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// IsDevelopment reports whether the logger was built in development mode.
func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the rotated log file path, or "" if file logging is off.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}

// Sync flushes buffered entries. Only the log file can report an error.
func (l *Logger) Sync() error {
	if l == nil || l.Logger == nil {
		return nil
	}
	return l.Logger.Sync()
}

// consoleWriterSync never syncs: stdout is often a pipe or terminal, where
// fsync fails with EINVAL.
type consoleWriterSync struct {
	io.Writer
}

func (consoleWriterSync) Sync() error {
	return nil
}
