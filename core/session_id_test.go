package core

import (
	"testing"
)

func TestGenerateSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		// 32 bytes base64 encoded without padding = 43 characters
		if len(id) != 43 {
			t.Errorf("len(id) = %d, want 43", len(id))
		}
		if !IsValidSessionID(id) {
			t.Errorf("IsValidSessionID(%q) = false for generated id", id)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		seen[id] = true
	}
}

func TestIsValidSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"short", false},
		{"not base64 !!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!", false},
	}

	for _, tt := range tests {
		if got := IsValidSessionID(tt.id); got != tt.want {
			t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
