package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the life cycle state of a task.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusNew             Status = "new"
	StatusInProgress      Status = "in-progress"
	StatusPendingApproval Status = "pending-approval"
	StatusApproved        Status = "approved"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// Statuses lists every status in life cycle order.
var Statuses = []Status{
	StatusDraft,
	StatusNew,
	StatusInProgress,
	StatusPendingApproval,
	StatusApproved,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusNew, StatusInProgress, StatusPendingApproval,
		StatusApproved, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown status %q", v))
	}
	return s, nil
}

// MilestoneStatus is the state of a milestone. Overdue is derived from the due date.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
	MilestoneOverdue   MilestoneStatus = "overdue"
)

type Milestone struct {
	Title       string          `json:"title"`
	DueDate     time.Time       `json:"dueDate"`
	Status      MilestoneStatus `json:"status"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// TimeEntry is an immutable record of hours spent on a task.
type TimeEntry struct {
	ID          uuid.UUID `json:"id"`
	Date        time.Time `json:"date"`
	Hours       float64   `json:"hours"`
	Description string    `json:"description"`
	Billable    bool      `json:"billable"`
	UserID      int64     `json:"userId"`
}

type Attachment struct {
	Name string `json:"name" validate:"required,max=255"`
	URL  string `json:"url" validate:"required,url"`
	Size int64  `json:"size,omitempty" validate:"gte=0"`
}

// Comment is an append-only remark on a task. WorkflowStep ties it to an approval step.
type Comment struct {
	ID           uuid.UUID    `json:"id"`
	UserID       int64        `json:"userId"`
	Text         string       `json:"text"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	WorkflowStep *int         `json:"workflowStep,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Task is the aggregate the workflow engine guards.
type Task struct {
	ID           uuid.UUID
	Title        string
	Description  string
	Status       Status
	AssignerID   int64
	AssigneeID   int64
	DueDate      *time.Time
	Progress     int
	Milestones   []Milestone
	TimeEntries  []TimeEntry
	ActualHours  float64
	Billing      Billing
	Workflow     *Workflow
	Comments     []Comment
	Recurrence   *Recurrence
	SourceTaskID *uuid.UUID
	CompletedAt  *time.Time
	AuditTrail   []AuditEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// Version is bumped by every persisted mutation.
	Version int
}

// HasWorkflow reports whether the task carries an approval chain.
func (t *Task) HasWorkflow() bool { return t.Workflow != nil }

// IsParticipant reports whether the actor is the assigner, the assignee or a step assignee.
func (t *Task) IsParticipant(actorID int64) bool {
	if actorID == t.AssigneeID || actorID == t.AssignerID {
		return true
	}
	if t.Workflow != nil {
		for _, s := range t.Workflow.Sequence {
			if s.AssigneeID == actorID {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so a mutation never touches the loaded snapshot.
func (t *Task) Clone() *Task {
	c := *t
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.SourceTaskID != nil {
		id := *t.SourceTaskID
		c.SourceTaskID = &id
	}

	c.Milestones = slices.Clone(t.Milestones)
	for i := range c.Milestones {
		c.Milestones[i].CompletedAt = cloneTime(c.Milestones[i].CompletedAt)
	}
	c.TimeEntries = slices.Clone(t.TimeEntries)

	c.Comments = slices.Clone(t.Comments)
	for i := range c.Comments {
		cm := &c.Comments[i]
		cm.Attachments = slices.Clone(cm.Attachments)
		if cm.WorkflowStep != nil {
			n := *cm.WorkflowStep
			cm.WorkflowStep = &n
		}
	}

	c.AuditTrail = slices.Clone(t.AuditTrail)
	for i := range c.AuditTrail {
		c.AuditTrail[i] = c.AuditTrail[i].clone()
	}

	c.Billing = t.Billing.clone()
	if t.Workflow != nil {
		w := t.Workflow.Clone()
		c.Workflow = &w
	}
	if t.Recurrence != nil {
		r := t.Recurrence.clone()
		c.Recurrence = &r
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
