package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"socialcron/internal/core"

	"github.com/go-chi/chi/v5"
)

type createTaskRequest struct {
	UserID     string       `json:"user_id"`
	AccountID  string       `json:"account_id"`
	TaskType   string       `json:"task_type"`
	Schedule   string       `json:"schedule"`
	NextRun    *string      `json:"next_run,omitempty"`
	Recurrence string       `json:"recurrence,omitempty"`
	Content    core.Content `json:"content"`
}

type rescheduleTaskRequest struct {
	Schedule string `json:"schedule"`
}

type executionLogResponse struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type taskResponse struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	AccountID  string       `json:"account_id"`
	TaskType   string       `json:"task_type"`
	Status     string       `json:"status"`
	Schedule   string       `json:"schedule"`
	NextRun    *string      `json:"next_run,omitempty"`
	Recurrence string       `json:"recurrence,omitempty"`
	Content    core.Content `json:"content"`
	LastRun    *string      `json:"last_run,omitempty"`
	CreatedAt  string       `json:"created_at"`
	UpdatedAt  string       `json:"updated_at"`
}

// handleCreateTask persists a new task and hands it to the scheduler.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "account_id is required")
		return
	}
	taskType := core.TaskType(strings.TrimSpace(req.TaskType))
	if !core.ValidTaskType(taskType) {
		writeError(w, http.StatusBadRequest, "invalid_input", "task_type must be one of post, comment, like, share, dm")
		return
	}
	schedule, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Schedule))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "schedule must be an RFC3339 timestamp")
		return
	}
	var nextRun *time.Time
	if req.NextRun != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.NextRun))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "next_run must be an RFC3339 timestamp")
			return
		}
		nextRun = &parsed
	}
	recurrence := strings.TrimSpace(req.Recurrence)
	if recurrence != "" {
		if _, err := core.ParseRecurrence(recurrence); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_recurrence", err.Error())
			return
		}
	}

	account, err := s.store.GetAccount(r.Context(), req.AccountID)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "social account not found")
		} else {
			s.logger.Error("resolve account for task", "account_id", req.AccountID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve account")
		}
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = account.UserID
	}

	task := &core.Task{
		ID:         core.NewID(),
		UserID:     userID,
		AccountID:  account.ID,
		Type:       taskType,
		Status:     core.TaskStatusPending,
		Schedule:   schedule,
		NextRun:    nextRun,
		Recurrence: recurrence,
		Content:    req.Content,
	}

	if err := s.store.SaveTask(r.Context(), task); err != nil {
		s.logger.Error("save task", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save task")
		return
	}
	s.scheduler.ScheduleTask(task)

	writeJSON(w, http.StatusCreated, taskToResponse(task))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	tasks, err := s.store.ListTasks(r.Context(), userID)
	if err != nil {
		s.logger.Error("list tasks", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list tasks")
		return
	}
	res := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskToResponse(t))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("get task", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load task")
		}
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

// handleDeleteTask removes the task and cancels any pending timer for it.
// A run already in progress completes and records its outcome.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := s.store.DeleteTask(r.Context(), taskID); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("delete task", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete task")
		}
		return
	}
	s.scheduler.CancelTask(taskID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRescheduleTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	var req rescheduleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	newTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Schedule))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "schedule must be an RFC3339 timestamp")
		return
	}
	if err := s.scheduler.RescheduleTask(r.Context(), taskID, newTime); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("reschedule task", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to reschedule task")
		}
		return
	}
	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		s.logger.Error("reload task after reschedule", "task_id", taskID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

func (s *Server) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if _, err := s.store.GetTask(r.Context(), taskID); err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		} else {
			s.logger.Error("get task for logs", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load task")
		}
		return
	}
	entries, err := s.store.ListLogs(r.Context(), taskID)
	if err != nil {
		s.logger.Error("list execution logs", "task_id", taskID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list execution logs")
		return
	}
	res := make([]executionLogResponse, 0, len(entries))
	for _, entry := range entries {
		res = append(res, executionLogResponse{
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
			Action:    entry.Action,
			Status:    entry.Status,
			Message:   entry.Message,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func taskToResponse(task *core.Task) taskResponse {
	var next, last *string
	if task.NextRun != nil {
		formatted := task.NextRun.UTC().Format(time.RFC3339)
		next = &formatted
	}
	if task.LastRun != nil {
		formatted := task.LastRun.UTC().Format(time.RFC3339)
		last = &formatted
	}
	return taskResponse{
		ID:         task.ID,
		UserID:     task.UserID,
		AccountID:  task.AccountID,
		TaskType:   string(task.Type),
		Status:     string(task.Status),
		Schedule:   task.Schedule.UTC().Format(time.RFC3339),
		NextRun:    next,
		Recurrence: task.Recurrence,
		Content:    task.Content,
		LastRun:    last,
		CreatedAt:  task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  task.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
