package core

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SessionIDLength is the number of random bytes behind a story session ID.
const SessionIDLength = 32

var sessionIDEncoding = base64.URLEncoding.WithPadding(base64.NoPadding)

// GenerateSessionID returns a URL-safe random identifier used as the story
// session cookie value.
func GenerateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return sessionIDEncoding.EncodeToString(bytes), nil
}

// IsValidSessionID reports whether id has the shape GenerateSessionID
// produces. Cookies failing this check are replaced with a fresh session.
func IsValidSessionID(id string) bool {
	decoded, err := sessionIDEncoding.DecodeString(id)
	return err == nil && len(decoded) == SessionIDLength
}
