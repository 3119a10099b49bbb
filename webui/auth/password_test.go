package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordWithCost(t *testing.T) {
	hash, err := HashPasswordWithCost("open sesame", MinCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}
	if cost, err := HashCost(hash); err != nil || cost != MinCost {
		t.Errorf("HashCost() = %d, %v, want %d", cost, err, MinCost)
	}

	again, _ := HashPasswordWithCost("open sesame", MinCost)
	if again == hash {
		t.Error("two hashes of the same password are identical; salt missing")
	}
}

func TestHashPasswordWithCost_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		password string
		cost     int
	}{
		{"empty password", "", MinCost},
		{"cost too low", "secret", MinCost - 1},
		{"cost too high", "secret", 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HashPasswordWithCost(tt.password, tt.cost); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("HashPassword(\"\") error = %v, want ErrEmptyPassword", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPasswordWithCost("open sesame", MinCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     error
	}{
		{"match", "open sesame", hash, nil},
		{"mismatch", "open barley", hash, ErrPasswordMismatch},
		{"case matters", "Open Sesame", hash, ErrPasswordMismatch},
		{"empty password", "", hash, ErrEmptyPassword},
		{"empty hash", "open sesame", "", ErrInvalidHash},
		{"malformed hash", "open sesame", "not-a-hash", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyPassword(tt.password, tt.hash); !errors.Is(err, tt.want) {
				t.Errorf("VerifyPassword() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHashCost_Invalid(t *testing.T) {
	if _, err := HashCost("plain"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("HashCost() error = %v, want ErrInvalidHash", err)
	}
}
