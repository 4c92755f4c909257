package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"socialcron/internal/notify"
)

// TaskStore abstracts the task persistence used by the scheduler and the
// execution engine.
type TaskStore interface {
	// FindPendingTasks returns every task in pending status, including
	// tasks whose schedule already passed (they are due immediately).
	FindPendingTasks(ctx context.Context) ([]*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	// SaveTask upserts the task by identity.
	SaveTask(ctx context.Context, task *Task) error
	// AppendLog records one execution outcome. Log rows are append-only.
	AppendLog(ctx context.Context, entry *ExecutionLog) error
}

// Runner executes a single task end-to-end. The bool reports whether the
// run completed; the error is non-nil only when the final persistence of
// the outcome failed.
type Runner interface {
	Run(ctx context.Context, task *Task) (bool, error)
}

// job pairs a task identity with its live timer. The generation counter
// lets a fired callback detect that it has been replaced or cancelled in
// the window between firing and acquiring the jobs lock.
type job struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler keeps at most one live timer per task identity and triggers
// the execution engine when a timer fires. Timer bookkeeping is guarded
// by its own mutex; execution serialization is owned by the engine.
type Scheduler struct {
	store    TaskStore
	engine   Runner
	notifier notify.Notifier
	logger   *slog.Logger
	location *time.Location

	mu   sync.Mutex
	jobs map[string]*job
	gen  uint64

	ctx context.Context
}

// NewScheduler constructs a scheduler with the given dependencies.
func NewScheduler(store TaskStore, engine Runner, notifier notify.Notifier, logger *slog.Logger, location *time.Location) *Scheduler {
	if location == nil {
		location = time.Local
	}
	if notifier == nil {
		notifier = &notify.NoOpNotifier{}
	}
	return &Scheduler{
		store:    store,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		location: location,
		jobs:     make(map[string]*job),
	}
}

// Start records the context used for background operations (store access
// and engine runs triggered by timers).
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
}

// Initialize loads all pending tasks from the store and schedules each of
// them. Tasks overdue at startup fire as soon as the scheduler starts. A
// task that fails validation is logged and skipped; it never aborts
// initialization of its siblings.
func (s *Scheduler) Initialize(ctx context.Context) error {
	tasks, err := s.store.FindPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("load pending tasks: %w", err)
	}
	scheduled := 0
	for _, task := range tasks {
		if err := s.validateTask(task); err != nil {
			s.logger.Error("skipping task", "task_id", task.ID, "err", err)
			continue
		}
		s.ScheduleTask(task)
		scheduled++
	}
	s.logger.Info("scheduler initialized", "tasks", scheduled)
	return nil
}

func (s *Scheduler) validateTask(task *Task) error {
	if !ValidTaskType(task.Type) {
		return fmt.Errorf("unknown task type %q", task.Type)
	}
	if task.Recurrence != "" {
		if _, err := ParseRecurrence(task.Recurrence); err != nil {
			return err
		}
	}
	return nil
}

// ScheduleTask creates a timer firing at task.Schedule. An existing timer
// for the same identity is cancelled first, so calling this repeatedly
// never leaves two live timers for one task.
func (s *Scheduler) ScheduleTask(task *Task) {
	delay := time.Until(task.Schedule)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[task.ID]; ok {
		existing.timer.Stop()
		delete(s.jobs, task.ID)
	}
	s.gen++
	gen := s.gen
	taskID := task.ID
	timer := time.AfterFunc(delay, func() {
		s.fire(taskID, gen)
	})
	s.jobs[taskID] = &job{timer: timer, gen: gen}
	s.logger.Info("task scheduled", "task_id", taskID, "at", task.Schedule)
}

// CancelTask removes the live timer for the task if one exists. It has no
// effect on a run already in progress.
func (s *Scheduler) CancelTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[taskID]; ok {
		existing.timer.Stop()
		delete(s.jobs, taskID)
		s.logger.Info("task cancelled", "task_id", taskID)
	}
}

// RescheduleTask moves the task's due time, persists it and replaces any
// existing timer.
func (s *Scheduler) RescheduleTask(ctx context.Context, taskID string, newTime time.Time) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	task.Schedule = newTime
	if err := s.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persist reschedule: %w", err)
	}
	s.ScheduleTask(task)
	s.logger.Info("task rescheduled", "task_id", taskID, "at", newTime)
	return nil
}

// Stop cancels every live timer. Runs already handed to the engine are
// not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		j.timer.Stop()
	}
	s.jobs = make(map[string]*job)
}

// fire handles a timer callback. The generation check discards callbacks
// from timers that were replaced or cancelled after firing.
func (s *Scheduler) fire(taskID string, gen uint64) {
	s.mu.Lock()
	current, ok := s.jobs[taskID]
	if !ok || current.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, taskID)
	s.mu.Unlock()

	ctx := s.ctxOrBackground()
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		s.logger.Error("fetch task for run", "task_id", taskID, "err", err)
		return
	}
	if task.Status != TaskStatusPending {
		s.logger.Info("skipping run, task no longer pending", "task_id", taskID, "status", task.Status)
		return
	}

	completed, runErr := s.engine.Run(ctx, task)
	if runErr != nil {
		s.logger.Error("persist run outcome", "task_id", taskID, "err", runErr)
	}
	if completed {
		s.logger.Info("task run completed", "task_id", taskID)
	} else {
		s.logger.Warn("task run failed", "task_id", taskID)
		if err := s.notifier.Send(ctx, "task failed",
			fmt.Sprintf("task %s (%s) failed, see its execution log", task.ID, task.Type)); err != nil {
			s.logger.Warn("send failure notification", "task_id", taskID, "err", err)
		}
	}

	// Rescheduling is driven only by the recurrence data, never by the
	// run outcome.
	if err := s.advanceRecurrence(ctx, task); err != nil {
		s.logger.Error("advance recurrence", "task_id", taskID, "err", err)
	}
}

// advanceRecurrence applies the post-run transition: a task carrying a
// next-run time goes back to pending with schedule = nextRun (nextRun
// cleared) and gets a fresh timer. When no explicit next-run is set but a
// recurrence expression exists, the next occurrence is derived from it.
// Tasks with neither stay terminal.
func (s *Scheduler) advanceRecurrence(ctx context.Context, task *Task) error {
	if task.NextRun == nil && task.Recurrence != "" {
		schedule, err := ParseRecurrence(task.Recurrence)
		if err != nil {
			return err
		}
		next := NextOccurrence(schedule, time.Now().In(s.location))
		task.NextRun = &next
	}
	if task.NextRun == nil {
		return nil
	}
	task.Schedule = *task.NextRun
	task.NextRun = nil
	task.Status = TaskStatusPending
	if err := s.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persist recurrence transition: %w", err)
	}
	s.ScheduleTask(task)
	return nil
}

func (s *Scheduler) ctxOrBackground() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}
