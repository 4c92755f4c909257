package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AccountStore abstracts the social-account persistence used by the
// execution engine.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	// TouchAccountUsed updates the account's last-used timestamp after a
	// successful login. Best effort.
	TouchAccountUsed(ctx context.Context, id string, at time.Time) error
}

// Driver is the capability set exposed by a platform automation session.
// Construction binds the platform; callers never see platform-specific
// methods.
type Driver interface {
	Login(ctx context.Context, creds Credentials) error
	Post(ctx context.Context, content Content) error
	Comment(ctx context.Context, target, text string) error
	// Close releases the underlying session. Safe to call more than once.
	Close() error
}

// DriverFactory creates an automation session bound to one platform.
type DriverFactory interface {
	Create(ctx context.Context, platform Platform) (Driver, error)
}

// Engine executes a single task to completion: resolve the account,
// acquire a driver session, log in, dispatch the action, record the
// outcome. The automation session is exclusive system-wide, so the whole
// run body holds one global execution mutex; concurrent timer firings
// block here until the previous run has released its session.
type Engine struct {
	tasks    TaskStore
	accounts AccountStore
	drivers  DriverFactory
	logger   *slog.Logger

	execMu sync.Mutex
}

// NewEngine constructs the execution engine.
func NewEngine(tasks TaskStore, accounts AccountStore, drivers DriverFactory, logger *slog.Logger) *Engine {
	return &Engine{
		tasks:    tasks,
		accounts: accounts,
		drivers:  drivers,
		logger:   logger,
	}
}

// Run executes the task and guarantees a terminal status plus exactly one
// execution log entry, no matter where a failure occurs. The bool is true
// iff the task completed. The error is non-nil only when persisting the
// outcome failed; every other failure kind is absorbed into the task
// record.
func (e *Engine) Run(ctx context.Context, task *Task) (bool, error) {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	task.Status = TaskStatusRunning
	if err := e.tasks.SaveTask(ctx, task); err != nil {
		// Observability only; the run proceeds.
		e.logger.Warn("mark task running", "task_id", task.ID, "err", err)
	}

	runErr := e.perform(ctx, task)

	now := time.Now().UTC()
	if runErr == nil {
		task.Status = TaskStatusCompleted
	} else {
		task.Status = TaskStatusFailed
		e.logger.Warn("task execution failed", "task_id", task.ID, "type", task.Type, "err", runErr)
	}
	task.LastRun = &now

	entry := &ExecutionLog{
		ID:        NewID(),
		TaskID:    task.ID,
		Timestamp: now,
		Action:    string(task.Type),
		Status:    string(task.Status),
		Message:   outcomeMessage(runErr),
	}
	completed := task.Status == TaskStatusCompleted
	if err := e.tasks.AppendLog(ctx, entry); err != nil {
		return completed, fmt.Errorf("append execution log: %w", err)
	}
	if err := e.tasks.SaveTask(ctx, task); err != nil {
		return completed, fmt.Errorf("persist task outcome: %w", err)
	}
	return completed, nil
}

// perform walks the sequential steps of a run. Each step's failure
// short-circuits; the driver session, once created, is released on every
// exit path.
func (e *Engine) perform(ctx context.Context, task *Task) error {
	account, err := e.accounts.GetAccount(ctx, task.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAccountNotFound, err)
	}

	drv, err := e.drivers.Create(ctx, account.Platform)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDriverInit, err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			e.logger.Warn("close driver session", "task_id", task.ID, "err", err)
		}
	}()

	if err := drv.Login(ctx, account.Credentials); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := e.accounts.TouchAccountUsed(ctx, account.ID, time.Now().UTC()); err != nil {
		e.logger.Warn("update account last used", "account_id", account.ID, "err", err)
	}

	return e.dispatch(ctx, drv, task)
}

// dispatch selects the driver capability matching the task type. The
// declared types without an action contract (like/share/dm) fail as
// unsupported until their behavior is specified.
func (e *Engine) dispatch(ctx context.Context, drv Driver, task *Task) error {
	switch task.Type {
	case TaskTypePost:
		if err := drv.Post(ctx, task.Content); err != nil {
			return fmt.Errorf("%w: %v", ErrActionFailed, err)
		}
		return nil
	case TaskTypeComment:
		if len(task.Content.TargetPosts) == 0 {
			return fmt.Errorf("%w: comment has no target post", ErrActionFailed)
		}
		if err := drv.Comment(ctx, task.Content.TargetPosts[0], task.Content.Text); err != nil {
			return fmt.Errorf("%w: %v", ErrActionFailed, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTaskType, task.Type)
	}
}

// outcomeMessage renders the human-readable cause stored in the execution
// log.
func outcomeMessage(err error) string {
	switch {
	case err == nil:
		return "Task completed successfully"
	case errors.Is(err, ErrAccountNotFound):
		return "Social account not found"
	case errors.Is(err, ErrDriverInit):
		return "Failed to initialize automation driver"
	case errors.Is(err, ErrLoginFailed):
		return "Login failed"
	default:
		return err.Error()
	}
}
