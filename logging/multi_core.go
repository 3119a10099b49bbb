package logging

import (
	"errors"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees a console core and, when fileWriter is non-nil, a JSON
// file core. Both share the same level enabler.
func NewMultiCore(level zapcore.LevelEnabler, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) (zapcore.Core, error) {
	if consoleWriter == nil {
		return nil, errors.New("logging: console writer is required")
	}

	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	if fileWriter == nil {
		return consoleCore, nil
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)
	return zapcore.NewTee(consoleCore, fileCore), nil
}
