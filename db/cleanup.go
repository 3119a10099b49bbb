package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports one retention pass.
type CleanupResult struct {
	Deleted  int64
	Duration time.Duration
}

// Cleanup deletes history older than retentionDays. Zero deletes nothing.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	if retentionDays < 0 {
		return CleanupResult{}, fmt.Errorf("db: retention days must be non-negative, got %d", retentionDays)
	}
	if retentionDays == 0 {
		return CleanupResult{Duration: time.Since(start)}, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(sqliteTime)
	res, err := d.exec(ctx, `DELETE FROM task_history WHERE started_at < ?`, cutoff)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("db: delete old history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("db: rows affected: %w", err)
	}
	return CleanupResult{Deleted: n, Duration: time.Since(start)}, nil
}

// StartCleanupScheduler runs Cleanup now and then every interval until
// ctx is done. onCleanup, if set, sees every result.
func (d *Database) StartCleanupScheduler(ctx context.Context, retentionDays int, interval time.Duration, onCleanup func(CleanupResult, error)) {
	if onCleanup == nil {
		onCleanup = func(CleanupResult, error) {}
	}
	go func() {
		onCleanup(d.Cleanup(ctx, retentionDays))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onCleanup(d.Cleanup(ctx, retentionDays))
			}
		}
	}()
}
