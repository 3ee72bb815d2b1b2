package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/workflow"
)

// InitializeWorkflow attaches an approval chain to the task. Only the assigner may do it.
func (s *TaskService) InitializeWorkflow(ctx context.Context, actor model.Actor, id uuid.UUID, in WorkflowInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	steps, opts, err := s.resolveSteps(in)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, "initializeWorkflow", id, actor, s.allow(permission.ActionAssign),
		func(t *model.Task, now time.Time) (change, error) {
			res, err := workflow.Initialize(t, steps, opts, now)
			if err != nil {
				return change{}, err
			}
			if in.Template != "" {
				res.Details["template"] = in.Template
			}
			return change{action: model.ActionWorkflowInitialized, details: res.Details, notices: res.Notices}, nil
		})
}

func (s *TaskService) resolveSteps(in WorkflowInput) ([]workflow.StepInput, workflow.Options, error) {
	var opts workflow.Options
	steps := in.Steps

	if in.Template != "" {
		if len(in.Steps) > 0 {
			return nil, opts, model.NewValidationError("steps", "steps and template are mutually exclusive")
		}
		tpl, ok := s.catalog.Lookup(in.Template)
		if !ok {
			return nil, opts, fmt.Errorf("%w: workflow template %q", model.ErrNotFound, in.Template)
		}
		steps = tpl.Steps
		opts = tpl.Options()
	}

	if in.AutoAdvance != nil {
		opts.AutoAdvance = *in.AutoAdvance
	}
	if in.RequireAllApprovals != nil {
		opts.RequireAllApprovals = *in.RequireAllApprovals
	}
	return steps, opts, nil
}

// ProcessStepAction applies the step assignee's decision on a workflow step.
func (s *TaskService) ProcessStepAction(ctx context.Context, actor model.Actor, id uuid.UUID, step int, in StepActionInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	t, err := s.mutate(ctx, "processStepAction", id, actor, s.allow(permission.ActionView),
		func(t *model.Task, now time.Time) (change, error) {
			res, err := workflow.ProcessStepAction(t, step, actor.ID, in.Action, in.Notes, now)
			if err != nil {
				return change{}, err
			}
			if res.Incomplete {
				s.logger.WithField("task_id", t.ID).Warn("last step approved but the workflow is not fully satisfied")
			}
			return change{action: model.ActionWorkflowAdvanced, details: res.Details, notices: res.Notices}, nil
		})
	if err != nil {
		s.metrics.StepAction(string(in.Action), "failed")
		return nil, err
	}
	s.metrics.StepAction(string(in.Action), string(t.Status))
	return t, nil
}

// AdvanceWorkflow moves a workflow that does not advance on its own to the next step.
func (s *TaskService) AdvanceWorkflow(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, error) {
	return s.mutate(ctx, "advanceWorkflow", id, actor, s.allow(permission.ActionAssign),
		func(t *model.Task, now time.Time) (change, error) {
			res, err := workflow.Advance(t, now)
			if err != nil {
				return change{}, err
			}
			return change{action: model.ActionWorkflowAdvanced, details: res.Details, notices: res.Notices}, nil
		})
}

// AddStepDocuments attaches documents to a workflow step.
func (s *TaskService) AddStepDocuments(ctx context.Context, actor model.Actor, id uuid.UUID, step int, in DocumentsInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "addStepDocuments", id, actor, s.allow(permission.ActionComment),
		func(t *model.Task, now time.Time) (change, error) {
			comment := model.Comment{ID: s.newID(), CreatedAt: now}
			res, err := workflow.AddStepDocuments(t, step, actor.ID, in.Documents, in.Notes, comment)
			if err != nil {
				return change{}, err
			}
			return change{action: model.ActionStepDocumentsAdded, details: res.Details, notices: res.Notices}, nil
		})
}

// AddComment appends a comment and lets the other side of the task know.
func (s *TaskService) AddComment(ctx context.Context, actor model.Actor, id uuid.UUID, in CommentInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "addComment", id, actor, s.allow(permission.ActionComment),
		func(t *model.Task, now time.Time) (change, error) {
			c := model.Comment{
				ID:          s.newID(),
				UserID:      actor.ID,
				Text:        in.Text,
				Attachments: in.Attachments,
				CreatedAt:   now,
			}
			t.Comments = append(t.Comments, c)

			content := fmt.Sprintf("New comment on %q", t.Title)
			notices := []model.Notice{{UserID: t.AssigneeID, Title: "New comment", Content: content}}
			if t.AssignerID != t.AssigneeID {
				notices = append(notices, model.Notice{UserID: t.AssignerID, Title: "New comment", Content: content})
			}
			return change{
				action:  model.ActionCommentAdded,
				details: map[string]any{"commentId": c.ID.String(), "attachments": len(c.Attachments)},
				notices: notices,
			}, nil
		})
}
