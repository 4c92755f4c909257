package core

import (
	"time"
)

// TaskStatus describes the lifecycle state of a task.
// Transitions are pending -> running -> {completed, failed}; a recurring
// task is returned to pending by the scheduler after each run.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskType identifies the social-media action a task performs.
type TaskType string

const (
	TaskTypePost    TaskType = "post"
	TaskTypeComment TaskType = "comment"
	TaskTypeLike    TaskType = "like"
	TaskTypeShare   TaskType = "share"
	TaskTypeDM      TaskType = "dm"
)

// ValidTaskType reports whether t is one of the declared task types.
// like/share/dm are declared but carry no action contract yet; executing
// them yields an unsupported-task-type failure.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypePost, TaskTypeComment, TaskTypeLike, TaskTypeShare, TaskTypeDM:
		return true
	}
	return false
}

// Platform identifies a supported social network.
type Platform string

const (
	PlatformReddit  Platform = "reddit"
	PlatformTwitter Platform = "twitter"
)

// ValidPlatform reports whether p is a supported platform.
func ValidPlatform(p Platform) bool {
	return p == PlatformReddit || p == PlatformTwitter
}

// Content is the task payload. Which fields matter depends on task type
// and platform: posts use Title/Text/Media plus Subreddits or Hashtags,
// comments use TargetPosts[0] and Text.
type Content struct {
	Text        string   `json:"text,omitempty"`
	Title       string   `json:"title,omitempty"`
	Media       []string `json:"media,omitempty"`
	TargetUsers []string `json:"target_users,omitempty"`
	TargetPosts []string `json:"target_posts,omitempty"`
	Subreddits  []string `json:"subreddits,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
}

// Task is a persisted request to perform one social-media action at or
// after Schedule. NextRun, when set, is consumed by the scheduler after a
// run to form the recurrence chain; Recurrence optionally derives NextRun
// from a 5-field cron expression when none is set explicitly.
type Task struct {
	ID         string
	UserID     string
	AccountID  string
	Type       TaskType
	Status     TaskStatus
	Schedule   time.Time
	NextRun    *time.Time
	Recurrence string
	Content    Content
	LastRun    *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExecutionLog is one append-only outcome record for a task run.
type ExecutionLog struct {
	ID        string
	TaskID    string
	Timestamp time.Time
	Action    string
	Status    string
	Message   string
}

// Credentials is the opaque login blob stored per account. Encryption at
// rest is owned by the surrounding deployment, not by this daemon.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Account is a social-media account owned by a user of the system.
type Account struct {
	ID          string
	UserID      string
	Platform    Platform
	Username    string
	Credentials Credentials
	Active      bool
	LastUsed    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
