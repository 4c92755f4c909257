package store

import (
	"context"
	"fmt"
	"time"

	"socialcron/internal/core"
)

// AppendLog inserts one execution log row. Rows are never updated or
// rewritten.
func (s *Store) AppendLog(ctx context.Context, entry *core.ExecutionLog) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO execution_logs (id, task_id, timestamp, action, status, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TaskID, formatTime(entry.Timestamp), entry.Action, entry.Status, entry.Message)
	if err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	return nil
}

// ListLogs returns the task's execution log in append order.
func (s *Store) ListLogs(ctx context.Context, taskID string) ([]*core.ExecutionLog, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, task_id, timestamp, action, status, message
		FROM execution_logs
		WHERE task_id = ?
		ORDER BY timestamp ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query execution logs: %w", err)
	}
	defer rows.Close()
	var entries []*core.ExecutionLog
	for rows.Next() {
		var (
			entry     core.ExecutionLog
			timestamp string
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &timestamp, &entry.Action, &entry.Status, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			entry.Timestamp = t
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
