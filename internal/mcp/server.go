// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the signed-in user's task clock as tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/internal/observability"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// Server wraps taskclock services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	store       core.TaskStore
	clock       core.Clock
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over store. metricsCalc and
// alertEngine may be nil when observability is disabled.
func NewServer(store core.TaskStore, clock core.Clock, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if clock == nil {
		clock = core.SystemClock()
	}

	s := &Server{
		store:       store,
		clock:       clock,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "taskclock", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"the task identifier"`
}

type taskOutput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	ExpiryTime  string `json:"expiry_time"`
	TimeLeft    string `json:"time_left"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	ExpiredAt   string `json:"expired_at,omitempty"`
}

type listTasksInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"one of all, pending, expired, completed, low, medium, high. Defaults to all."`
	Search string `json:"search,omitempty" jsonschema:"case-insensitive substring to match against task titles"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type createTaskInput struct {
	Title       string `json:"title" jsonschema:"short title of the task"`
	Description string `json:"description,omitempty" jsonschema:"optional free-form description"`
	Priority    string `json:"priority,omitempty" jsonschema:"low, medium or high. Defaults to the configured priority."`
	ExpiresAt   string `json:"expires_at,omitempty" jsonschema:"deadline as RFC 3339 timestamp"`
	ExpiresIn   string `json:"expires_in,omitempty" jsonschema:"deadline relative to now, e.g. 90m, 36h or 3d"`
}

type updateTaskInput struct {
	TaskID      string  `json:"task_id" jsonschema:"the task identifier"`
	Title       *string `json:"title,omitempty" jsonschema:"new title"`
	Description *string `json:"description,omitempty" jsonschema:"new description"`
	Priority    *string `json:"priority,omitempty" jsonschema:"new priority: low, medium or high"`
	ExpiresAt   *string `json:"expires_at,omitempty" jsonschema:"new deadline as RFC 3339 timestamp (pending tasks only)"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type sweepOutput struct {
	Expired int    `json:"expired"`
	Message string `json:"message"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksExpired    int            `json:"tasks_expired"`
	TasksDeleted    int            `json:"tasks_deleted"`
	TasksByPriority map[string]int `json:"tasks_by_priority"`
	SignIns         int            `json:"sign_ins"`
	CompletionRate  float64        `json:"completion_rate"`
	EventCount      int            `json:"event_count"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	TaskID      string `json:"task_id,omitempty"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List the signed-in user's tasks with an optional status or priority filter and title search. Pending tasks come first, nearest deadline first.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by ID, including its status and the time left before it expires.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a pending task with a deadline given either as expires_at or expires_in.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Change a task's title, description, priority or deadline. Deadlines of expired or completed tasks cannot be moved.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "complete_task",
		Description: "Mark a pending task as completed. Expired tasks cannot be completed.",
	}, s.handleCompleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task in any status.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "sweep_tasks",
		Description: "Expire every pending task whose deadline has passed and report how many changed.",
	}, s.handleSweep)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated metrics from the event log: tasks created, completed, expired and deleted, plus completion rate.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate deadline alerts: tasks due soon, expired high priority tasks and pending backlog size.",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	filter, err := core.ParseFilter(input.Filter)
	if err != nil {
		return errorResult(err.Error()), listTasksOutput{}, nil
	}

	tasks := s.store.Search(filter, input.Search)
	now := s.clock.Now()
	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t, now)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	task, err := s.store.GetByID(input.TaskID)
	if err != nil {
		return errorResult(describe(err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task, s.clock.Now()), nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	expiry, err := s.resolveExpiry(input.ExpiresAt, input.ExpiresIn)
	if err != nil {
		return errorResult(err.Error()), taskOutput{}, nil
	}

	task, err := s.store.Create(ctx, core.TaskInput{
		Title:       input.Title,
		Description: input.Description,
		Priority:    models.Priority(input.Priority),
		ExpiryTime:  expiry,
	})
	if err != nil {
		return errorResult(describe(err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task, s.clock.Now()), nil
}

func (s *Server) handleUpdateTask(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	patch := core.TaskPatch{Title: input.Title, Description: input.Description}
	if input.Priority != nil {
		p := models.Priority(*input.Priority)
		patch.Priority = &p
	}
	if input.ExpiresAt != nil {
		expiry, err := time.Parse(time.RFC3339, *input.ExpiresAt)
		if err != nil {
			return errorResult(fmt.Sprintf("expires_at: %s", err)), taskOutput{}, nil
		}
		patch.ExpiryTime = &expiry
	}

	task, err := s.store.Update(ctx, input.TaskID, patch)
	if err != nil {
		return errorResult(describe(err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task, s.clock.Now()), nil
}

func (s *Server) handleCompleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	task, err := s.store.Complete(ctx, input.TaskID)
	if err != nil {
		return errorResult(describe(err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task, s.clock.Now()), nil
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), messageOutput{}, nil
	}
	if err := s.store.Delete(ctx, input.TaskID); err != nil {
		return errorResult(describe(err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s deleted", input.TaskID)}, nil
}

func (s *Server) handleSweep(ctx context.Context, _ *gomcp.CallToolRequest, _ struct{}) (*gomcp.CallToolResult, sweepOutput, error) {
	n, err := s.store.Sweep(ctx)
	if err != nil {
		return errorResult(describe(err)), sweepOutput{}, nil
	}
	return nil, sweepOutput{Expired: n, Message: fmt.Sprintf("%d task(s) expired", n)}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	window, err := core.ParseRelative(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(s.clock.Now().UTC().Add(-window))
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:    metrics.TasksCreated,
		TasksCompleted:  metrics.TasksCompleted,
		TasksExpired:    metrics.TasksExpired,
		TasksDeleted:    metrics.TasksDeleted,
		TasksByPriority: metrics.TasksByPriority,
		SignIns:         metrics.SignIns,
		CompletionRate:  metrics.CompletionRate,
		EventCount:      metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts := s.alertEngine.Evaluate(s.store.Tasks(), s.clock.Now())
	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			TaskID:      a.TaskID,
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func (s *Server) resolveExpiry(at, in string) (time.Time, error) {
	switch {
	case at != "" && in != "":
		return time.Time{}, fmt.Errorf("set only one of expires_at and expires_in")
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("expires_at: %w", err)
		}
		return t, nil
	case in != "":
		d, err := core.ParseRelative(in)
		if err != nil {
			return time.Time{}, fmt.Errorf("expires_in: %w", err)
		}
		return s.clock.Now().Add(d), nil
	}
	return time.Time{}, fmt.Errorf("one of expires_at or expires_in is required")
}

func taskToOutput(t models.Task, now time.Time) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		ExpiryTime:  t.ExpiryTime.Format(time.RFC3339),
		TimeLeft:    core.TimeLeft(t, now),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		out.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	if t.ExpiredAt != nil {
		out.ExpiredAt = t.ExpiredAt.Format(time.RFC3339)
	}
	return out
}

// describe turns a core error into a message suitable for a tool result.
func describe(err error) string {
	switch {
	case errors.Is(err, core.ErrNoSession):
		return "no user is signed in; run `taskclock auth signin` first"
	case errors.Is(err, core.ErrNotFound):
		return err.Error()
	case errors.Is(err, core.ErrValidation):
		return "invalid input: " + err.Error()
	case errors.Is(err, core.ErrInvalidTransition):
		return err.Error()
	case errors.Is(err, core.ErrPersistence):
		return "storage error: " + err.Error()
	}
	return err.Error()
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{TasksByPriority: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
