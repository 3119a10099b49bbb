package shutdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"storybook/core"
)

// TempFilePattern matches the scratch files the render command writes
// before atomically renaming them into place.
const TempFilePattern = ".storybook-*.tmp"

// CleanupTempFiles returns a shutdown function removing files in dir that
// match pattern. Failures are logged and never block shutdown.
//
// Usage:
//
//	manager.Register("temp-files", shutdown.PriorityTempFiles,
//	    shutdown.CleanupTempFiles(logger, outDir, shutdown.TempFilePattern))
func CleanupTempFiles(logger *zap.Logger, dir, pattern string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		removed, failed := removeMatching(ctx, logger, dir, pattern)
		if removed > 0 || failed > 0 {
			logger.Info("Temp file cleanup finished",
				zap.String("directory", dir),
				zap.Int("removed", removed),
				zap.Int("failed", failed),
			)
		}
		return nil
	}
}

func removeMatching(ctx context.Context, logger *zap.Logger, dir, pattern string) (removed, failed int) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		logger.Error("Invalid temp file pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0, 0
	}

	for _, path := range matches {
		if ctx.Err() != nil {
			logger.Warn("Shutdown deadline reached during temp file cleanup",
				zap.Int("remaining", len(matches)-removed-failed))
			return removed, failed
		}

		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove temp file", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		removed++
	}
	return removed, failed
}
