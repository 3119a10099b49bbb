package sdruntime

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidatePrompt rejects prompts a backend cannot use: blank, containing NUL,
// not UTF-8, or longer than MaxPromptLength bytes.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidPrompt)
	}

	if strings.ContainsRune(prompt, '\x00') {
		return fmt.Errorf("%w: prompt contains null bytes", ErrInvalidPrompt)
	}

	if !utf8.ValidString(prompt) {
		return fmt.Errorf("%w: prompt is not valid UTF-8", ErrInvalidPrompt)
	}

	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt length %d exceeds maximum %d",
			ErrInvalidPrompt, len(prompt), MaxPromptLength)
	}

	return nil
}

// SanitizePrompt trims surrounding whitespace.
func SanitizePrompt(prompt string) string {
	return strings.TrimSpace(prompt)
}
