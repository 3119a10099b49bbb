package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// HistoryRecord is one row of task_history.
type HistoryRecord struct {
	ID           int64
	TaskID       string
	TaskType     string
	SessionID    string
	SceneIndex   int
	Status       string
	Code         string
	ErrorMessage string
	DurationMS   int64
	StartedAt    time.Time
	CreatedAt    time.Time
}

// sqliteTime is the layout CURRENT_TIMESTAMP produces and the one we
// store started_at in, so both columns sort as text.
const sqliteTime = "2006-01-02 15:04:05"

// Repository reads and writes task history. With a started AsyncWriter,
// inserts are queued instead of executed inline.
type Repository struct {
	db     *Database
	writer *AsyncWriter
}

// NewRepository returns a Repository. writer may be nil.
func NewRepository(db *Database, writer *AsyncWriter) *Repository {
	return &Repository{db: db, writer: writer}
}

type insertOp struct {
	query string
	args  []any
}

const insertHistory = `
	INSERT INTO task_history (
		task_id, task_type, session_id, scene_index, status,
		code, error_message, duration_ms, started_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertTaskHistory stores rec. It returns the row ID, or 0 when the
// insert was queued. A full queue falls back to a synchronous insert.
func (r *Repository) InsertTaskHistory(ctx context.Context, rec HistoryRecord) (int64, error) {
	if rec.TaskID == "" || rec.TaskType == "" || rec.Status == "" {
		return 0, errors.New("db: history record needs task id, type and status")
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	args := []any{
		rec.TaskID,
		rec.TaskType,
		nullString(rec.SessionID),
		nullInt(rec.SceneIndex),
		rec.Status,
		nullString(rec.Code),
		nullString(rec.ErrorMessage),
		rec.DurationMS,
		started.UTC().Format(sqliteTime),
	}

	if r.writer != nil && r.writer.IsStarted() {
		if r.writer.Write(insertOp{query: insertHistory, args: args}) {
			return 0, nil
		}
	}

	res, err := r.db.exec(ctx, insertHistory, args...)
	if err != nil {
		return 0, fmt.Errorf("db: insert task history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("db: last insert id: %w", err)
	}
	return id, nil
}

// AsyncWriteHandler applies inserts queued by InsertTaskHistory.
func (r *Repository) AsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		ins, ok := op.Data.(insertOp)
		if !ok {
			return fmt.Errorf("db: unexpected queued write %T", op.Data)
		}
		if _, err := r.db.exec(context.Background(), ins.query, ins.args...); err != nil {
			return fmt.Errorf("db: queued insert: %w", err)
		}
		return nil
	}
}

const selectHistory = `
	SELECT id, task_id, task_type, COALESCE(session_id, ''), COALESCE(scene_index, 0),
	       status, COALESCE(code, ''), COALESCE(error_message, ''), duration_ms,
	       started_at, created_at
	FROM task_history`

// QueryRecentHistory returns up to limit records, newest first.
func (r *Repository) QueryRecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.query(ctx, selectHistory+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: query task history: %w", err)
	}
	return scanHistory(rows)
}

// QueryHistoryBySession returns up to limit records for one session,
// newest first.
func (r *Repository) QueryHistoryBySession(ctx context.Context, sessionID string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.query(ctx,
		selectHistory+` WHERE session_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("db: query session history: %w", err)
	}
	return scanHistory(rows)
}

// CountTaskHistory returns the number of stored records.
func (r *Repository) CountTaskHistory(ctx context.Context) (int64, error) {
	row, err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM task_history`)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count task history: %w", err)
	}
	return n, nil
}

func scanHistory(rows *sql.Rows) ([]HistoryRecord, error) {
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			rec              HistoryRecord
			started, created string
		)
		if err := rows.Scan(
			&rec.ID, &rec.TaskID, &rec.TaskType, &rec.SessionID, &rec.SceneIndex,
			&rec.Status, &rec.Code, &rec.ErrorMessage, &rec.DurationMS,
			&started, &created,
		); err != nil {
			return nil, fmt.Errorf("db: scan task history: %w", err)
		}
		rec.StartedAt = parseSQLiteTime(started)
		rec.CreatedAt = parseSQLiteTime(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate task history: %w", err)
	}
	return out, nil
}

// parseSQLiteTime accepts the text layout we write and the RFC 3339 form
// modernc.org/sqlite returns for DATETIME columns.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{sqliteTime, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return sql.NullInt64{}
	}
	return n
}
