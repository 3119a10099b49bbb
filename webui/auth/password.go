// Package auth guards the operator dashboard endpoints behind an optional
// password. The password is only ever held as a bcrypt hash.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt cost used for the dashboard password.
	DefaultCost = 12

	// MinCost is the lowest cost HashPasswordWithCost accepts.
	MinCost = 10
)

var (
	// ErrEmptyPassword is returned when hashing or verifying "".
	ErrEmptyPassword = errors.New("auth: password cannot be empty")

	// ErrPasswordMismatch does not say whether the hash itself was valid.
	ErrPasswordMismatch = errors.New("auth: password does not match")

	// ErrInvalidHash is returned for an empty or malformed hash.
	ErrInvalidHash = errors.New("auth: invalid password hash")
)

// HashPassword hashes password at DefaultCost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultCost)
}

// HashPasswordWithCost hashes password at cost, which must lie between
// MinCost and bcrypt.MaxCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost < MinCost || cost > bcrypt.MaxCost {
		return "", bcrypt.InvalidCostError(cost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares password against hash in constant time.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// HashCost reports the cost a hash was created with.
func HashCost(hash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return 0, ErrInvalidHash
	}
	return cost, nil
}
