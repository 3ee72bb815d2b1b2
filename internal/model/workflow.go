package model

import (
	"slices"
	"time"
)

type StepType string

const (
	StepReview       StepType = "review"
	StepApproval     StepType = "approval"
	StepNotification StepType = "notification"
)

func (t StepType) Valid() bool {
	switch t {
	case StepReview, StepApproval, StepNotification:
		return true
	}
	return false
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
)

// StepAction is what a step assignee does with a pending step.
type StepAction string

const (
	StepApprove        StepAction = "approve"
	StepReject         StepAction = "reject"
	StepRequestChanges StepAction = "request-changes"
)

func (a StepAction) Valid() bool {
	switch a {
	case StepApprove, StepReject, StepRequestChanges:
		return true
	}
	return false
}

// Step is one sequential stage of an approval chain. Step numbers are 1-indexed.
type Step struct {
	Step        int        `json:"step"`
	Name        string     `json:"name"`
	Type        StepType   `json:"type"`
	AssigneeID  int64      `json:"assigneeId"`
	Status      StepStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type Workflow struct {
	CurrentStep         int    `json:"currentStep"`
	TotalSteps          int    `json:"totalSteps"`
	Sequence            []Step `json:"sequence"`
	AutoAdvance         bool   `json:"autoAdvance"`
	RequireAllApprovals bool   `json:"requireAllApprovals"`
}

// Step returns the step with the given 1-indexed number.
func (w Workflow) Step(n int) (Step, bool) {
	if n < 1 || n > len(w.Sequence) {
		return Step{}, false
	}
	return w.Sequence[n-1], true
}

// Current returns the step the pointer is on.
func (w Workflow) Current() (Step, bool) {
	return w.Step(w.CurrentStep)
}

// UpdateStep returns a copy of the workflow with step n replaced by fn(step).
// The sequence is rebuilt so the receiver is never modified.
func (w Workflow) UpdateStep(n int, fn func(Step) Step) Workflow {
	c := w.Clone()
	if n < 1 || n > len(c.Sequence) {
		return c
	}
	c.Sequence[n-1] = fn(c.Sequence[n-1])
	return c
}

// Clone returns a deep copy of the workflow.
func (w Workflow) Clone() Workflow {
	c := w
	c.Sequence = slices.Clone(w.Sequence)
	for i := range c.Sequence {
		c.Sequence[i].CompletedAt = cloneTime(c.Sequence[i].CompletedAt)
	}
	return c
}
