package logging

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaxPromptLogRunes bounds how much of an image prompt is written to logs.
const MaxPromptLogRunes = 120

// SceneFields identifies a scene in log records.
//
//	logger.Info("prompt updated", logging.SceneFields(2, "Rising Trouble")...)
func SceneFields(index int, title string) []zap.Field {
	return []zap.Field{
		zap.Int("scene_index", index),
		zap.String("scene_title", title),
	}
}

// PromptField logs an image prompt, truncated to MaxPromptLogRunes runes.
func PromptField(prompt string) zap.Field {
	if utf8.RuneCountInString(prompt) <= MaxPromptLogRunes {
		return zap.String("prompt", prompt)
	}
	runes := []rune(prompt)
	return zap.String("prompt", string(runes[:MaxPromptLogRunes])+"...")
}

// AcquisitionFields describes one completed image acquisition.
func AcquisitionFields(backend string, imageBytes int, duration time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("backend", backend),
		zap.Int("image_bytes", imageBytes),
		zap.Duration("duration", duration),
	}
}

// CompositionFields describes one composed document.
func CompositionFields(pages, imagesDrawn, imagesOmitted, documentBytes int, duration time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int("pages", pages),
		zap.Int("images_drawn", imagesDrawn),
		zap.Int("images_omitted", imagesOmitted),
		zap.Int("document_bytes", documentBytes),
		zap.Duration("duration", duration),
	}
}
