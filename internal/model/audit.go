package model

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Audit actions.
const (
	ActionCreated                  = "created"
	ActionStatusChanged            = "status-changed"
	ActionWorkflowInitialized      = "workflow-initialized"
	ActionWorkflowAdvanced         = "workflow-advanced"
	ActionStepDocumentsAdded       = "step-documents-added"
	ActionCommentAdded             = "comment-added"
	ActionProgressUpdated          = "progress-updated"
	ActionMilestoneCompleted       = "milestone-completed"
	ActionTimeTracked              = "time-tracked"
	ActionBillingUpdated           = "billing-updated"
	ActionRecurringTasksCreated    = "recurring-tasks-created"
	ActionRecurringTasksRolledBack = "recurring-tasks-rolled-back"
	ActionPermissionDenied         = "permission-denied"
)

// AuditEntry is one append-only record of what happened to a task.
type AuditEntry struct {
	ID        uuid.UUID
	TaskID    uuid.UUID
	Action    string
	Timestamp time.Time
	UserID    int64
	Details   map[string]any
}

// NewAuditEntry builds an entry for the task.
func NewAuditEntry(taskID uuid.UUID, action string, userID int64, at time.Time, details map[string]any) AuditEntry {
	if details == nil {
		details = map[string]any{}
	}
	return AuditEntry{
		ID:        uuid.New(),
		TaskID:    taskID,
		Action:    action,
		Timestamp: at,
		UserID:    userID,
		Details:   details,
	}
}

// IntDetail reads an integer detail. Details that went through JSON come back as float64.
func (e AuditEntry) IntDetail(key string) (int, bool) {
	switch v := e.Details[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func (e AuditEntry) clone() AuditEntry {
	e.Details = maps.Clone(e.Details)
	return e
}
