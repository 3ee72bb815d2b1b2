package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/ledger"
	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/progress"
)

// UpdateProgress sets the completion percentage and refreshes the milestones.
func (s *TaskService) UpdateProgress(ctx context.Context, actor model.Actor, id uuid.UUID, in ProgressInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if err := progress.Validate(in.Progress); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "updateProgress", id, actor, s.allow(permission.ActionEdit),
		func(t *model.Task, now time.Time) (change, error) {
			u, err := progress.Apply(t, in.Progress, now)
			if err != nil {
				return change{}, err
			}
			details := u.Details(in.Notes)
			if len(u.Overdue) > 0 {
				details["overdueMilestones"] = u.Overdue
			}
			return change{action: model.ActionProgressUpdated, details: details, notices: progress.Notices(t, u)}, nil
		})
}

// CompleteMilestone marks the milestone at index as done.
func (s *TaskService) CompleteMilestone(ctx context.Context, actor model.Actor, id uuid.UUID, index int) (*model.Task, error) {
	return s.mutate(ctx, "completeMilestone", id, actor, s.allow(permission.ActionEdit),
		func(t *model.Task, now time.Time) (change, error) {
			if err := progress.CompleteMilestone(t, index, now); err != nil {
				return change{}, err
			}
			title := t.Milestones[index].Title
			return change{
				action:  model.ActionMilestoneCompleted,
				details: map[string]any{"index": index, "title": title},
				notices: []model.Notice{{
					UserID:  t.AssignerID,
					Title:   "Milestone completed",
					Content: fmt.Sprintf("Milestone %q of %q is complete", title, t.Title),
				}},
			}, nil
		})
}

// EstimateCompletion projects the completion date from the progress history.
// A nil time means there is not enough upward history to project.
func (s *TaskService) EstimateCompletion(ctx context.Context, actor model.Actor, id uuid.UUID) (*time.Time, error) {
	t, err := s.read(ctx, "estimateCompletion", id, actor)
	if err != nil {
		return nil, err
	}
	return progress.EstimateCompletion(t, s.clock()), nil
}

// AddTimeEntry logs hours against the task.
func (s *TaskService) AddTimeEntry(ctx context.Context, actor model.Actor, id uuid.UUID, in TimeEntryInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	canLog := func(t *model.Task, actor model.Actor) permission.Decision {
		return s.evaluator.Decide(permission.CanLogTime(t, actor.ID), actor)
	}

	return s.mutate(ctx, "addTimeEntry", id, actor, canLog,
		func(t *model.Task, now time.Time) (change, error) {
			entry := model.TimeEntry{
				ID:          s.newID(),
				Date:        in.Date,
				Hours:       in.Hours,
				Description: in.Description,
				Billable:    in.Billable,
				UserID:      actor.ID,
			}
			reconciled, err := ledger.Append(t, entry)
			if err != nil {
				return change{}, err
			}

			details := map[string]any{
				"entryId":     entry.ID.String(),
				"hours":       entry.Hours,
				"date":        entry.Date.Format(time.DateOnly),
				"billable":    entry.Billable,
				"actualHours": t.ActualHours,
			}
			if reconciled {
				s.logger.WithField("task_id", t.ID).Warn("cached hours diverged from the time entries and were recomputed")
				details["reconciled"] = true
			}
			return change{action: model.ActionTimeTracked, details: details}, nil
		})
}

// UpdateBillingInfo replaces the billing block. Only the assigner may do it.
func (s *TaskService) UpdateBillingInfo(ctx context.Context, actor model.Actor, id uuid.UUID, in model.Billing) (*model.Task, error) {
	b, err := ledger.Normalize(in)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, "updateBillingInfo", id, actor, s.allow(permission.ActionAssign),
		func(t *model.Task, _ time.Time) (change, error) {
			old := t.Billing
			t.Billing = b
			details := map[string]any{
				"oldRateType": string(old.RateType),
				"rateType":    string(b.RateType),
				"billable":    b.Billable,
				"currency":    b.Currency,
			}
			if b.Rate != nil {
				details["rate"] = *b.Rate
			}
			return change{action: model.ActionBillingUpdated, details: details}, nil
		})
}

// BillingSummary computes the billing view of the task.
func (s *TaskService) BillingSummary(ctx context.Context, actor model.Actor, id uuid.UUID) (ledger.Summary, error) {
	t, err := s.read(ctx, "billingSummary", id, actor)
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.Summarize(t), nil
}
