package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTaskStore keeps tasks by value so GetTask behaves like a fresh
// database read rather than sharing pointers with the caller.
type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]Task
	logs    []ExecutionLog
	pending []string

	saveErr    error
	appendErr  error
	pendingErr error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]Task)}
}

func (f *fakeTaskStore) put(task *Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = *task
}

func (f *fakeTaskStore) get(id string) (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	return task, ok
}

func (f *fakeTaskStore) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func (f *fakeTaskStore) lastLog() (ExecutionLog, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logs) == 0 {
		return ExecutionLog{}, false
	}
	return f.logs[len(f.logs)-1], true
}

func (f *fakeTaskStore) FindPendingTasks(ctx context.Context) ([]*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var tasks []*Task
	for _, id := range f.pending {
		if task, ok := f.tasks[id]; ok {
			copied := task
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	copied := task
	return &copied, nil
}

func (f *fakeTaskStore) SaveTask(ctx context.Context, task *Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTaskStore) AppendLog(ctx context.Context, entry *ExecutionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.logs = append(f.logs, *entry)
	return nil
}

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	touched  map[string]time.Time
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		accounts: make(map[string]Account),
		touched:  make(map[string]time.Time),
	}
}

func (f *fakeAccountStore) put(account *Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.ID] = *account
}

func (f *fakeAccountStore) wasTouched(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.touched[id]
	return ok
}

func (f *fakeAccountStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := account
	return &copied, nil
}

func (f *fakeAccountStore) TouchAccountUsed(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

// recorder collects ordered event strings across goroutines.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeDriver struct {
	name     string
	rec      *recorder
	loginErr error
	postErr  error
	commErr  error
	delay    time.Duration

	mu            sync.Mutex
	closes        int
	commentTarget string
	commentText   string
}

func (d *fakeDriver) Login(ctx context.Context, creds Credentials) error {
	if d.rec != nil {
		d.rec.add("login " + d.name)
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.loginErr
}

func (d *fakeDriver) Post(ctx context.Context, content Content) error {
	if d.rec != nil {
		d.rec.add("post " + d.name)
	}
	return d.postErr
}

func (d *fakeDriver) Comment(ctx context.Context, target, text string) error {
	d.mu.Lock()
	d.commentTarget = target
	d.commentText = text
	d.mu.Unlock()
	return d.commErr
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	if d.rec != nil {
		d.rec.add("close " + d.name)
	}
	return nil
}

func (d *fakeDriver) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type fakeFactory struct {
	mu        sync.Mutex
	createErr error
	drivers   map[Platform]*fakeDriver
	created   int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{drivers: make(map[Platform]*fakeDriver)}
}

func (f *fakeFactory) Create(ctx context.Context, platform Platform) (Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	drv, ok := f.drivers[platform]
	if !ok {
		return nil, errors.New("no fake driver for platform")
	}
	f.created++
	return drv, nil
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// fakeRunner is a Runner stub recording every task it is handed.
type fakeRunner struct {
	mu      sync.Mutex
	runs    []string
	outcome bool
	err     error
	onRun   func(task *Task)
}

func (r *fakeRunner) Run(ctx context.Context, task *Task) (bool, error) {
	r.mu.Lock()
	r.runs = append(r.runs, task.ID)
	onRun := r.onRun
	r.mu.Unlock()
	if onRun != nil {
		onRun(task)
	}
	return r.outcome, r.err
}

func (r *fakeRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
