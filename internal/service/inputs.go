package service

import (
	"time"

	"taskflow/internal/model"
	"taskflow/internal/workflow"
)

type MilestoneInput struct {
	Title   string    `json:"title" validate:"required,max=200"`
	DueDate time.Time `json:"dueDate" validate:"required"`
}

type AssignTaskInput struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	AssigneeID  int64             `json:"assigneeId" validate:"required,gt=0"`
	DueDate     *time.Time        `json:"dueDate"`
	Milestones  []MilestoneInput  `json:"milestones" validate:"omitempty,dive"`
	Billing     *model.Billing    `json:"billing"`
	Recurrence  *model.Recurrence `json:"recurrence"`
	// Draft creates the task in draft instead of new.
	Draft bool `json:"draft"`
}

type StatusInput struct {
	Status model.Status `json:"status" validate:"required"`
	Notes  string       `json:"notes" validate:"max=2000"`
}

// WorkflowInput starts an approval chain either from explicit steps or from a
// catalog template. AutoAdvance and RequireAllApprovals override the template.
type WorkflowInput struct {
	Template            string               `json:"template"`
	Steps               []workflow.StepInput `json:"steps" validate:"omitempty,dive"`
	AutoAdvance         *bool                `json:"autoAdvance"`
	RequireAllApprovals *bool                `json:"requireAllApprovals"`
}

type StepActionInput struct {
	Action model.StepAction `json:"action" validate:"required"`
	Notes  string           `json:"notes" validate:"max=2000"`
}

type DocumentsInput struct {
	Documents []model.Attachment `json:"documents" validate:"required,min=1,dive"`
	Notes     string             `json:"notes" validate:"max=2000"`
}

type CommentInput struct {
	Text        string             `json:"text" validate:"required,max=5000"`
	Attachments []model.Attachment `json:"attachments" validate:"omitempty,dive"`
}

type ProgressInput struct {
	Progress int    `json:"progress"`
	Notes    string `json:"notes" validate:"max=2000"`
}

type TimeEntryInput struct {
	Date        time.Time `json:"date" validate:"required"`
	Hours       float64   `json:"hours" validate:"gt=0,lte=24"`
	Description string    `json:"description" validate:"max=1000"`
	Billable    bool      `json:"billable"`
}
