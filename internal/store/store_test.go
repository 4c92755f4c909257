package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcron/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.DB.Close() })
	return s
}

func sampleTask(id string) *core.Task {
	return &core.Task{
		ID:        id,
		UserID:    "u1",
		AccountID: "acc1",
		Type:      core.TaskTypePost,
		Status:    core.TaskStatusPending,
		Schedule:  time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Content: core.Content{
			Text:       "hello",
			Title:      "title",
			Subreddits: []string{"golang"},
		},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, sampleTask("t1")))
	require.NoError(t, s.DB.Close())

	// Reopening must not re-apply migrations or lose data.
	s2, err := Open(ctx, dir)
	require.NoError(t, err)
	defer s2.DB.Close()

	task, err := s2.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
}

func TestSaveTaskRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	nextRun := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	task := sampleTask("t1")
	task.NextRun = &nextRun
	task.Recurrence = "0 9 * * *"

	require.NoError(t, s.SaveTask(ctx, task))
	assert.False(t, task.CreatedAt.IsZero())

	loaded, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.UserID, loaded.UserID)
	assert.Equal(t, task.AccountID, loaded.AccountID)
	assert.Equal(t, core.TaskTypePost, loaded.Type)
	assert.Equal(t, core.TaskStatusPending, loaded.Status)
	assert.True(t, loaded.Schedule.Equal(task.Schedule))
	require.NotNil(t, loaded.NextRun)
	assert.True(t, loaded.NextRun.Equal(nextRun))
	assert.Equal(t, "0 9 * * *", loaded.Recurrence)
	assert.Equal(t, task.Content, loaded.Content)
	assert.Nil(t, loaded.LastRun)
}

func TestSaveTaskUpsertsExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := sampleTask("t1")
	require.NoError(t, s.SaveTask(ctx, task))

	lastRun := time.Now().UTC().Truncate(time.Second)
	task.Status = core.TaskStatusCompleted
	task.LastRun = &lastRun
	require.NoError(t, s.SaveTask(ctx, task))

	loaded, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.LastRun)
	assert.True(t, loaded.LastRun.Equal(lastRun))

	all, err := s.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetTaskNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	assert.True(t, errors.Is(err, core.ErrTaskNotFound))
}

func TestFindPendingTasksOrderAndFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	late := sampleTask("late")
	late.Schedule = time.Now().Add(2 * time.Hour).UTC()
	early := sampleTask("early")
	early.Schedule = time.Now().Add(-time.Hour).UTC()
	done := sampleTask("done")
	done.Status = core.TaskStatusCompleted

	for _, task := range []*core.Task{late, early, done} {
		require.NoError(t, s.SaveTask(ctx, task))
	}

	pending, err := s.FindPendingTasks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "early", pending[0].ID)
	assert.Equal(t, "late", pending[1].ID)
}

func TestListTasksByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mine := sampleTask("mine")
	theirs := sampleTask("theirs")
	theirs.UserID = "u2"
	require.NoError(t, s.SaveTask(ctx, mine))
	require.NoError(t, s.SaveTask(ctx, theirs))

	tasks, err := s.ListTasks(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "theirs", tasks[0].ID)
}

func TestDeleteTaskRemovesLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, sampleTask("t1")))
	require.NoError(t, s.AppendLog(ctx, &core.ExecutionLog{
		ID:        core.NewID(),
		TaskID:    "t1",
		Timestamp: time.Now().UTC(),
		Action:    "post",
		Status:    "completed",
		Message:   "Task completed successfully",
	}))

	require.NoError(t, s.DeleteTask(ctx, "t1"))

	_, err := s.GetTask(ctx, "t1")
	assert.True(t, errors.Is(err, core.ErrTaskNotFound))

	logs, err := s.ListLogs(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.True(t, errors.Is(s.DeleteTask(ctx, "t1"), core.ErrTaskNotFound))
}

func TestAppendAndListLogsInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, message := range []string{"Login failed", "Task completed successfully"} {
		require.NoError(t, s.AppendLog(ctx, &core.ExecutionLog{
			ID:        core.NewID(),
			TaskID:    "t1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Action:    "post",
			Status:    "failed",
			Message:   message,
		}))
	}

	logs, err := s.ListLogs(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Login failed", logs[0].Message)
	assert.Equal(t, "Task completed successfully", logs[1].Message)
}

func sampleAccount(id string) *core.Account {
	return &core.Account{
		ID:       id,
		UserID:   "u1",
		Platform: core.PlatformReddit,
		Username: "poster",
		Credentials: core.Credentials{
			Username: "poster",
			Password: "hunter2",
		},
		Active: true,
	}
}

func TestSaveAccountRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccount(ctx, sampleAccount("acc1")))

	loaded, err := s.GetAccount(ctx, "acc1")
	require.NoError(t, err)
	assert.Equal(t, core.PlatformReddit, loaded.Platform)
	assert.Equal(t, "poster", loaded.Username)
	assert.Equal(t, "hunter2", loaded.Credentials.Password)
	assert.True(t, loaded.Active)
	assert.Nil(t, loaded.LastUsed)
}

func TestGetAccountNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAccount(context.Background(), "missing")
	assert.True(t, errors.Is(err, core.ErrAccountNotFound))
}

func TestListAccountsByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := sampleAccount("acc1")
	second := sampleAccount("acc2")
	second.UserID = "u2"
	require.NoError(t, s.SaveAccount(ctx, first))
	require.NoError(t, s.SaveAccount(ctx, second))

	accounts, err := s.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc1", accounts[0].ID)

	all, err := s.ListAccounts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccount(ctx, sampleAccount("acc1")))
	require.NoError(t, s.DeleteAccount(ctx, "acc1"))
	assert.True(t, errors.Is(s.DeleteAccount(ctx, "acc1"), core.ErrAccountNotFound))
}

func TestTouchAccountUsed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccount(ctx, sampleAccount("acc1")))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchAccountUsed(ctx, "acc1", at))

	loaded, err := s.GetAccount(ctx, "acc1")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastUsed)
	assert.True(t, loaded.LastUsed.Equal(at))
}
