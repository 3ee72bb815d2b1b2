// Package workflow is the approval chain state machine. It mutates the task
// aggregate it is given and reports the notices and audit details of the
// change; persistence and delivery belong to the caller.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"taskflow/internal/model"
)

// StepInput describes a step when a workflow is initialized.
type StepInput struct {
	Name       string         `json:"name" yaml:"name" validate:"required"`
	Type       model.StepType `json:"type" yaml:"type" validate:"required,oneof=review approval notification"`
	AssigneeID int64          `json:"assigneeId" yaml:"assigneeId" validate:"required,gt=0"`
}

type Options struct {
	AutoAdvance         bool
	RequireAllApprovals bool
}

// Result is what a workflow operation produced.
type Result struct {
	Notices []model.Notice
	Details map[string]any
	// Approved is set when the operation moved the task to approved.
	Approved bool
	// Incomplete is set when the last step was acted on but not every step is satisfied.
	Incomplete bool
}

func (r *Result) notify(userID int64, title, content string) {
	r.Notices = append(r.Notices, model.Notice{UserID: userID, Title: title, Content: content})
}

// Initialize attaches a fresh approval chain to the task and puts it up for approval.
func Initialize(t *model.Task, steps []StepInput, opts Options, now time.Time) (Result, error) {
	if t.Workflow != nil {
		return Result{}, fmt.Errorf("%w: task already has a workflow", model.ErrInvalidStepAction)
	}
	if len(steps) == 0 {
		return Result{}, model.NewValidationError("steps", "at least one step is required")
	}
	for i, s := range steps {
		if !s.Type.Valid() {
			return Result{}, model.NewValidationError(fmt.Sprintf("steps[%d].type", i), fmt.Sprintf("unknown step type %q", s.Type))
		}
		if s.AssigneeID <= 0 {
			return Result{}, model.NewValidationError(fmt.Sprintf("steps[%d].assigneeId", i), "assignee is required")
		}
	}
	if t.Status != model.StatusNew && t.Status != model.StatusInProgress {
		return Result{}, fmt.Errorf("%w: a workflow can't be started on a %s task", model.ErrInvalidTransition, t.Status)
	}

	seq := make([]model.Step, len(steps))
	for i, s := range steps {
		seq[i] = model.Step{
			Step:       i + 1,
			Name:       s.Name,
			Type:       s.Type,
			AssigneeID: s.AssigneeID,
			Status:     model.StepPending,
		}
	}
	t.Workflow = &model.Workflow{
		CurrentStep:         1,
		TotalSteps:          len(seq),
		Sequence:            seq,
		AutoAdvance:         opts.AutoAdvance,
		RequireAllApprovals: opts.RequireAllApprovals,
	}
	t.Status = model.StatusPendingApproval

	res := Result{Details: map[string]any{
		"totalSteps":          len(seq),
		"autoAdvance":         opts.AutoAdvance,
		"requireAllApprovals": opts.RequireAllApprovals,
	}}
	enter(t, 1, now, &res)
	return res, nil
}

// ProcessStepAction applies an approve, reject or request-changes from the step assignee.
func ProcessStepAction(t *model.Task, stepNumber int, actorID int64, action model.StepAction, notes string, now time.Time) (Result, error) {
	w := t.Workflow
	if w == nil {
		return Result{}, fmt.Errorf("%w: task has no workflow", model.ErrNotFound)
	}
	step, ok := w.Step(stepNumber)
	if !ok {
		return Result{}, fmt.Errorf("%w: step %d out of range 1..%d", model.ErrInvalidStepAction, stepNumber, w.TotalSteps)
	}
	if step.AssigneeID != actorID {
		return Result{}, fmt.Errorf("%w: step %d is assigned to another employee", model.ErrForbidden, stepNumber)
	}
	if !action.Valid() {
		return Result{}, model.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}
	if action != model.StepApprove && strings.TrimSpace(notes) == "" {
		return Result{}, model.NewValidationError("notes", fmt.Sprintf("notes are required to %s", action))
	}
	if step.Status != model.StepPending {
		return Result{}, fmt.Errorf("%w: step %d already processed (%s)", model.ErrInvalidStepAction, stepNumber, step.Status)
	}
	if t.Status != model.StatusPendingApproval {
		return Result{}, fmt.Errorf("%w: workflow is not awaiting approval (task is %s)", model.ErrInvalidStepAction, t.Status)
	}
	if stepNumber != w.CurrentStep {
		return Result{}, fmt.Errorf("%w: step %d is not the current step %d", model.ErrInvalidStepAction, stepNumber, w.CurrentStep)
	}

	res := Result{Details: map[string]any{
		"step":   stepNumber,
		"action": string(action),
		"notes":  notes,
	}}

	switch action {
	case model.StepApprove:
		approve(t, stepNumber, notes, now, &res)
	case model.StepReject, model.StepRequestChanges:
		// The step is not consumed: the next pass acts on it again.
		t.Status = model.StatusRejected
		title := "Task rejected"
		if action == model.StepRequestChanges {
			title = "Changes requested"
		}
		res.notify(t.AssigneeID, title, fmt.Sprintf("Step %d (%s) of %q: %s", stepNumber, step.Name, t.Title, notes))
	}
	return res, nil
}

func approve(t *model.Task, n int, notes string, now time.Time, res *Result) {
	w := t.Workflow
	step, _ := w.Step(n)
	*w = w.UpdateStep(n, func(s model.Step) model.Step {
		at := now
		s.Status = model.StepCompleted
		s.CompletedAt = &at
		s.Notes = notes
		return s
	})

	if n == w.TotalSteps {
		finalize(t, res)
		if res.Approved {
			res.notify(t.AssigneeID, "Task approved", fmt.Sprintf("All approval steps of %q are complete", t.Title))
			return
		}
	}
	res.notify(t.AssigneeID, "Workflow step approved", fmt.Sprintf("Step %d (%s) of %q was approved", n, step.Name, t.Title))

	if n < w.TotalSteps && w.AutoAdvance {
		enter(t, n+1, now, res)
	}
}

// Advance moves the pointer past a satisfied current step. It is used by
// workflows that don't advance automatically.
func Advance(t *model.Task, now time.Time) (Result, error) {
	w := t.Workflow
	if w == nil {
		return Result{}, fmt.Errorf("%w: task has no workflow", model.ErrNotFound)
	}
	if t.Status != model.StatusPendingApproval {
		return Result{}, fmt.Errorf("%w: workflow is not awaiting approval (task is %s)", model.ErrInvalidStepAction, t.Status)
	}
	cur, ok := w.Current()
	if !ok {
		return Result{}, fmt.Errorf("%w: current step %d out of range", model.ErrInvalidStepAction, w.CurrentStep)
	}
	if cur.Status == model.StepPending {
		return Result{}, fmt.Errorf("%w: step %d is still pending", model.ErrInvalidStepAction, cur.Step)
	}
	if w.CurrentStep >= w.TotalSteps {
		return Result{}, fmt.Errorf("%w: step %d is the last step", model.ErrInvalidStepAction, cur.Step)
	}

	res := Result{Details: map[string]any{
		"step":   w.CurrentStep + 1,
		"action": "advance",
	}}
	enter(t, w.CurrentStep+1, now, &res)
	return res, nil
}

// enter moves the pointer to step n. Notification steps need no action: their
// assignee is informed, the step is skipped and the pointer keeps moving.
func enter(t *model.Task, n int, now time.Time, res *Result) {
	w := t.Workflow
	for ; n <= w.TotalSteps; n++ {
		w.CurrentStep = n
		step, _ := w.Step(n)
		if step.Type != model.StepNotification {
			res.notify(step.AssigneeID, "Approval required",
				fmt.Sprintf("Task %q is waiting for your %s at step %d (%s)", t.Title, step.Type, n, step.Name))
			return
		}

		*w = w.UpdateStep(n, func(s model.Step) model.Step {
			s.Status = model.StepSkipped
			at := now
			s.CompletedAt = &at
			return s
		})
		res.notify(step.AssigneeID, "Workflow update",
			fmt.Sprintf("Task %q reached step %d (%s)", t.Title, n, step.Name))
	}

	finalize(t, res)
}

// finalize approves the task only when every step is satisfied; the pointer
// position alone is never taken as proof of completion.
func finalize(t *model.Task, res *Result) {
	if AllSatisfied(*t.Workflow) {
		t.Status = model.StatusApproved
		res.Approved = true
		return
	}
	res.Incomplete = true
}

// AllSatisfied reports whether every step counts as approved. The engine only
// ever skips notification steps, so RequireAllApprovals guards against
// workflows whose approval steps were skipped outside the engine (stored data
// edited by hand or written by another version); it never changes the outcome
// of a workflow the engine ran on its own.
func AllSatisfied(w model.Workflow) bool {
	if len(w.Sequence) != w.TotalSteps {
		return false
	}
	for _, s := range w.Sequence {
		switch s.Status {
		case model.StepCompleted:
		case model.StepSkipped:
			if w.RequireAllApprovals && s.Type != model.StepNotification {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// AddStepDocuments attaches documents to a step as a tagged comment. The step status is untouched.
func AddStepDocuments(t *model.Task, stepNumber int, actorID int64, docs []model.Attachment, notes string, comment model.Comment) (Result, error) {
	if len(docs) == 0 {
		return Result{}, model.NewValidationError("documents", "at least one document is required")
	}
	w := t.Workflow
	if w == nil {
		return Result{}, fmt.Errorf("%w: task has no workflow", model.ErrNotFound)
	}
	step, ok := w.Step(stepNumber)
	if !ok {
		return Result{}, fmt.Errorf("%w: step %d out of range 1..%d", model.ErrInvalidStepAction, stepNumber, w.TotalSteps)
	}

	n := stepNumber
	comment.UserID = actorID
	comment.Text = notes
	if strings.TrimSpace(comment.Text) == "" {
		comment.Text = fmt.Sprintf("Documents added to step %d", n)
	}
	comment.Attachments = append([]model.Attachment(nil), docs...)
	comment.WorkflowStep = &n
	t.Comments = append(t.Comments, comment)

	res := Result{Details: map[string]any{
		"step":      n,
		"documents": len(docs),
		"commentId": comment.ID.String(),
	}}
	res.notify(step.AssigneeID, "Documents added",
		fmt.Sprintf("%d document(s) were added to step %d (%s) of %q", len(docs), n, step.Name, t.Title))
	return res, nil
}
