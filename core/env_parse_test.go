package core

import (
	"reflect"
	"testing"
	"time"
)

func TestParseIntEnv(t *testing.T) {
	const testKey = "TEST_STORY_PARSE_INT"

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid integer", "42", 42},
		{"surrounding whitespace", " 7 ", 7},
		{"malformed falls back", "seven", 5},
		{"empty falls back", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.value)
			if got := ParseIntEnv(testKey, 5); got != tt.want {
				t.Errorf("ParseIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	const testKey = "TEST_STORY_PARSE_BOOL"

	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(testKey, tt.value)
			if got := ParseBoolEnv(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	const testKey = "TEST_STORY_PARSE_DURATION"

	t.Setenv(testKey, "30")
	if got := ParseDurationEnv(testKey, 10); got != 30*time.Second {
		t.Errorf("ParseDurationEnv() = %v, want 30s", got)
	}

	t.Setenv(testKey, "-4")
	if got := ParseDurationEnv(testKey, 10); got != 10*time.Second {
		t.Errorf("ParseDurationEnv() with negative value = %v, want default 10s", got)
	}
}

func TestParseListEnv(t *testing.T) {
	const testKey = "TEST_STORY_PARSE_LIST"

	t.Setenv(testKey, " a, ,b ,c")
	if got := ParseListEnv(testKey, "x"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("ParseListEnv() = %v", got)
	}

	t.Setenv(testKey, "")
	if got := ParseListEnv(testKey, "x,y"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("ParseListEnv() default = %v", got)
	}
}
