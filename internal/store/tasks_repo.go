package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"socialcron/internal/core"
)

// SaveTask upserts the task by identity.
func (s *Store) SaveTask(ctx context.Context, task *core.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	content, err := json.Marshal(task.Content)
	if err != nil {
		return fmt.Errorf("encode task content: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, account_id, task_type, status, schedule, next_run, recurrence, content, last_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			account_id = excluded.account_id,
			task_type = excluded.task_type,
			status = excluded.status,
			schedule = excluded.schedule,
			next_run = excluded.next_run,
			recurrence = excluded.recurrence,
			content = excluded.content,
			last_run = excluded.last_run,
			updated_at = excluded.updated_at
	`, task.ID, task.UserID, task.AccountID, task.Type, task.Status,
		formatTime(task.Schedule), nullableTime(task.NextRun), task.Recurrence, string(content),
		nullableTime(task.LastRun), formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// DeleteTask removes the task row and its execution logs.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrTaskNotFound
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM execution_logs WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete task logs: %w", err)
	}
	return nil
}

// GetTask loads one task by identity.
func (s *Store) GetTask(ctx context.Context, id string) (*core.Task, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, account_id, task_type, status, schedule, next_run, recurrence, content, last_run, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// FindPendingTasks returns every pending task ordered by due time,
// overdue rows first.
func (s *Store) FindPendingTasks(ctx context.Context) ([]*core.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, account_id, task_type, status, schedule, next_run, recurrence, content, last_run, created_at, updated_at
		FROM tasks
		WHERE status = ?
		ORDER BY schedule ASC
	`, core.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListTasks returns tasks, optionally filtered by owning user, newest
// first.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]*core.Task, error) {
	var rows *sql.Rows
	var err error
	if userID != "" {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT id, user_id, account_id, task_type, status, schedule, next_run, recurrence, content, last_run, created_at, updated_at
			FROM tasks
			WHERE user_id = ?
			ORDER BY created_at DESC
		`, userID)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT id, user_id, account_id, task_type, status, schedule, next_run, recurrence, content, last_run, created_at, updated_at
			FROM tasks
			ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*core.Task, error) {
	var tasks []*core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*core.Task, error) {
	var (
		id         string
		userID     string
		accountID  string
		taskType   string
		status     string
		schedule   string
		nextRun    sql.NullString
		recurrence string
		content    string
		lastRun    sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := scanner.Scan(&id, &userID, &accountID, &taskType, &status, &schedule, &nextRun, &recurrence, &content, &lastRun, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task := &core.Task{
		ID:         id,
		UserID:     userID,
		AccountID:  accountID,
		Type:       core.TaskType(taskType),
		Status:     core.TaskStatus(status),
		Recurrence: recurrence,
	}
	if err := json.Unmarshal([]byte(content), &task.Content); err != nil {
		return nil, fmt.Errorf("decode task content: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, schedule); err == nil {
		task.Schedule = t
	}
	task.NextRun = parseNullableTime(nextRun)
	task.LastRun = parseNullableTime(lastRun)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		task.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		task.UpdatedAt = t
	}
	return task, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &t
}
