package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

// RedactedPlaceholder replaces secrets in log output.
const RedactedPlaceholder = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{
	// OpenAI keys
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	// Authorization headers
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)api_key\s*[:=]\s*[^\s,;]{8,}`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*[^\s,;]{8,}`),
	// credentials embedded in URLs
	regexp.MustCompile(`(?i)https?://[^/\s:@]+:[^/\s@]+@`),
}

var sensitiveFieldNames = []string{
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
	"PASSWORD",
	"SECRET",
	"TOKEN",
}

// RedactSensitiveData masks every secret-looking substring of value.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	for _, pattern := range sensitivePatterns {
		value = pattern.ReplaceAllString(value, RedactedPlaceholder)
	}
	return value
}

// IsSensitiveField reports whether a field key names a secret.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

type redactingCore struct {
	zapcore.Core
}

// NewRedactingCore wraps core so messages and string fields are scrubbed
// before encoding.
func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = RedactSensitiveData(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zapcore.Field, len(fields))
	for i, field := range fields {
		switch {
		case IsSensitiveField(field.Key):
			result[i] = zapcore.Field{Key: field.Key, Type: zapcore.StringType, String: RedactedPlaceholder}
		case field.Type == zapcore.StringType:
			field.String = RedactSensitiveData(field.String)
			result[i] = field
		case field.Type == zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && err != nil {
				result[i] = zapcore.Field{Key: field.Key, Type: zapcore.StringType, String: RedactSensitiveData(err.Error())}
				continue
			}
			result[i] = field
		default:
			result[i] = field
		}
	}
	return result
}
