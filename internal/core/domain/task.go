package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeExecuteOperation executes a previewed bulk operation
	TaskTypeExecuteOperation TaskType = "execute_operation"
	// TaskTypeSyncStores runs a store synchronization job
	TaskTypeSyncStores TaskType = "sync_stores"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	ID string `json:"id"`

	Type TaskType `json:"type"`

	// Payload contains task-specific data.
	// For execute_operation: {"operation_id": ..., "safety_config": <json>}
	// For sync_stores: {"source_id": ..., "target_ids": ..., "sync_config": <json>}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.NewString(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewExecuteOperationTask creates a task to execute a previewed operation.
// safetyConfig is the raw JSON safety config supplied by the caller.
func NewExecuteOperationTask(operationID string, safetyConfig string) *Task {
	return NewTask(TaskTypeExecuteOperation, map[string]string{
		"operation_id":  operationID,
		"safety_config": safetyConfig,
	})
}

// NewSyncStoresTask creates a task to run a synchronization.
// targetIDs are comma-joined; syncConfig is the raw JSON sync config.
func NewSyncStoresTask(sourceID string, targetIDs []string, syncConfig string) *Task {
	return NewTask(TaskTypeSyncStores, map[string]string{
		"source_id":   sourceID,
		"target_ids":  strings.Join(targetIDs, ","),
		"sync_config": syncConfig,
	})
}

// OperationID extracts the operation_id from the payload.
func (t *Task) OperationID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["operation_id"]
}

// SourceStoreID extracts the source_id from the payload.
func (t *Task) SourceStoreID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["source_id"]
}

// TargetStoreIDs extracts the comma-joined target_ids from the payload.
func (t *Task) TargetStoreIDs() []string {
	if t.Payload == nil || t.Payload["target_ids"] == "" {
		return nil
	}
	return strings.Split(t.Payload["target_ids"], ",")
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}
