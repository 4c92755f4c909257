package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"socialcron/internal/core"
	"socialcron/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes task and account management as MCP tools over stdio.
type MCPServer struct {
	store     *store.Store
	scheduler *core.Scheduler
	logger    *slog.Logger
	location  *time.Location
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(store *store.Store, scheduler *core.Scheduler, logger *slog.Logger, location *time.Location) *MCPServer {
	return &MCPServer{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		location:  location,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"socialcron",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.logger.Info("MCP server starting on stdio")

	return server.ServeStdio(mcpServer)
}

func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("task_create",
		mcp.WithDescription("Schedule a social-media automation task. The schedule is an RFC3339 timestamp; an optional 5-field cron recurrence repeats the task."),
		mcp.WithString("account_id",
			mcp.Required(),
			mcp.Description("Social account the task runs against"),
		),
		mcp.WithString("task_type",
			mcp.Required(),
			mcp.Description("Action to perform"),
			mcp.Enum("post", "comment", "like", "share", "dm"),
		),
		mcp.WithString("schedule",
			mcp.Required(),
			mcp.Description("Due time, RFC3339, e.g. 2026-09-01T09:00:00Z"),
		),
		mcp.WithString("recurrence",
			mcp.Description("Optional 5-field cron expression, e.g. '0 9 * * 1-5' for weekday mornings"),
		),
		mcp.WithString("text",
			mcp.Description("Post or comment body"),
		),
		mcp.WithString("title",
			mcp.Description("Post title (reddit posts)"),
		),
		mcp.WithString("subreddit",
			mcp.Description("Target subreddit (reddit posts)"),
		),
		mcp.WithString("hashtags",
			mcp.Description("Comma-separated hashtags (twitter posts)"),
		),
		mcp.WithString("target_post",
			mcp.Description("Post or tweet identifier to comment on"),
		),
	), s.handleCreateTask)

	mcpServer.AddTool(mcp.NewTool("task_list",
		mcp.WithDescription("List automation tasks"),
		mcp.WithString("user_id",
			mcp.Description("Filter by owning user"),
		),
	), s.handleListTasks)

	mcpServer.AddTool(mcp.NewTool("task_get",
		mcp.WithDescription("Get task details"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
	), s.handleGetTask)

	mcpServer.AddTool(mcp.NewTool("task_cancel",
		mcp.WithDescription("Delete a task and cancel its pending timer"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
	), s.handleCancelTask)

	mcpServer.AddTool(mcp.NewTool("task_reschedule",
		mcp.WithDescription("Move a task to a new due time"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
		mcp.WithString("schedule",
			mcp.Required(),
			mcp.Description("New due time, RFC3339"),
		),
	), s.handleRescheduleTask)

	mcpServer.AddTool(mcp.NewTool("task_logs",
		mcp.WithDescription("Show a task's execution log"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
	), s.handleTaskLogs)

	mcpServer.AddTool(mcp.NewTool("account_list",
		mcp.WithDescription("List social accounts"),
		mcp.WithString("user_id",
			mcp.Description("Filter by owning user"),
		),
	), s.handleListAccounts)

	s.logger.Info("MCP tools registered", "count", 7)
}

func (s *MCPServer) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID := mcp.ParseString(request, "account_id", "")
	taskType := core.TaskType(mcp.ParseString(request, "task_type", ""))
	scheduleStr := mcp.ParseString(request, "schedule", "")

	if !core.ValidTaskType(taskType) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid task_type: %s", taskType)), nil
	}
	schedule, err := time.Parse(time.RFC3339, scheduleStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid schedule: %v", err)), nil
	}
	recurrence := strings.TrimSpace(mcp.ParseString(request, "recurrence", ""))
	if recurrence != "" {
		if _, err := core.ParseRecurrence(recurrence); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid recurrence: %v", err)), nil
		}
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if err == core.ErrAccountNotFound {
			return mcp.NewToolResultError(fmt.Sprintf("account not found: %s", accountID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("load account: %v", err)), nil
	}

	content := core.Content{
		Text:  mcp.ParseString(request, "text", ""),
		Title: mcp.ParseString(request, "title", ""),
	}
	if subreddit := mcp.ParseString(request, "subreddit", ""); subreddit != "" {
		content.Subreddits = []string{subreddit}
	}
	if hashtags := mcp.ParseString(request, "hashtags", ""); hashtags != "" {
		for _, tag := range strings.Split(hashtags, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				content.Hashtags = append(content.Hashtags, trimmed)
			}
		}
	}
	if target := mcp.ParseString(request, "target_post", ""); target != "" {
		content.TargetPosts = []string{target}
	}

	task := &core.Task{
		ID:         core.NewID(),
		UserID:     account.UserID,
		AccountID:  account.ID,
		Type:       taskType,
		Status:     core.TaskStatusPending,
		Schedule:   schedule,
		Recurrence: recurrence,
		Content:    content,
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		s.logger.Error("save task", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("create task: %v", err)), nil
	}
	s.scheduler.ScheduleTask(task)

	s.logger.Info("task created", "task_id", task.ID, "type", taskType, "schedule", schedule)

	return mcp.NewToolResultText(fmt.Sprintf("Task created\nID: %s\nDue: %s\nAccount: %s (%s)",
		task.ID,
		task.Schedule.In(s.location).Format("2006-01-02 15:04:05"),
		account.Username,
		account.Platform,
	)), nil
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := mcp.ParseString(request, "user_id", "")

	tasks, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		s.logger.Error("list tasks", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("list tasks: %v", err)), nil
	}

	if len(tasks) == 0 {
		return mcp.NewToolResultText("No tasks found"), nil
	}

	result := fmt.Sprintf("Found %d tasks:\n\n", len(tasks))
	for _, t := range tasks {
		result += fmt.Sprintf("%s [%s]\n", t.ID, t.Status)
		result += fmt.Sprintf("  Type: %s\n", t.Type)
		result += fmt.Sprintf("  Due: %s\n", t.Schedule.In(s.location).Format("2006-01-02 15:04:05"))
		if t.Recurrence != "" {
			result += fmt.Sprintf("  Recurrence: %s\n", t.Recurrence)
		}
		if t.NextRun != nil {
			result += fmt.Sprintf("  Next run: %s\n", t.NextRun.In(s.location).Format("2006-01-02 15:04:05"))
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if err == core.ErrTaskNotFound {
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("load task: %v", err)), nil
	}

	result := fmt.Sprintf("Task ID: %s\n", task.ID)
	result += fmt.Sprintf("Status: %s\n", task.Status)
	result += fmt.Sprintf("Type: %s\n", task.Type)
	result += fmt.Sprintf("Account: %s\n", task.AccountID)
	result += fmt.Sprintf("Due: %s\n", task.Schedule.In(s.location).Format("2006-01-02 15:04:05"))
	if task.Recurrence != "" {
		result += fmt.Sprintf("Recurrence: %s\n", task.Recurrence)
	}
	if task.NextRun != nil {
		result += fmt.Sprintf("Next run: %s\n", task.NextRun.In(s.location).Format("2006-01-02 15:04:05"))
	}
	if task.LastRun != nil {
		result += fmt.Sprintf("Last run: %s\n", task.LastRun.In(s.location).Format("2006-01-02 15:04:05"))
	}
	if task.Content.Text != "" {
		result += fmt.Sprintf("Text: %s\n", truncateString(task.Content.Text, 120))
	}

	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleCancelTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		if err == core.ErrTaskNotFound {
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("delete task: %v", err)), nil
	}

	s.scheduler.CancelTask(taskID)

	return mcp.NewToolResultText(fmt.Sprintf("Task cancelled: %s", taskID)), nil
}

func (s *MCPServer) handleRescheduleTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")
	scheduleStr := mcp.ParseString(request, "schedule", "")

	newTime, err := time.Parse(time.RFC3339, scheduleStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid schedule: %v", err)), nil
	}

	if err := s.scheduler.RescheduleTask(ctx, taskID, newTime); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reschedule task: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Task rescheduled\nID: %s\nDue: %s",
		taskID, newTime.In(s.location).Format("2006-01-02 15:04:05"))), nil
}

func (s *MCPServer) handleTaskLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	entries, err := s.store.ListLogs(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list logs: %v", err)), nil
	}

	if len(entries) == 0 {
		return mcp.NewToolResultText("No execution log entries for this task"), nil
	}

	result := fmt.Sprintf("Found %d log entries:\n\n", len(entries))
	for _, entry := range entries {
		result += fmt.Sprintf("[%s] %s %s\n", entry.Timestamp.In(s.location).Format("2006-01-02 15:04:05"), entry.Action, entry.Status)
		result += fmt.Sprintf("    %s\n", entry.Message)
	}

	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleListAccounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := mcp.ParseString(request, "user_id", "")

	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list accounts: %v", err)), nil
	}

	if len(accounts) == 0 {
		return mcp.NewToolResultText("No accounts found"), nil
	}

	result := fmt.Sprintf("Found %d accounts:\n\n", len(accounts))
	for _, account := range accounts {
		state := "active"
		if !account.Active {
			state = "inactive"
		}
		result += fmt.Sprintf("%s (%s) %s, %s\n", account.Username, account.Platform, account.ID, state)
	}

	return mcp.NewToolResultText(result), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
