package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/recurrence"
)

// CreateRecurringTasks spawns the instances of a recurring task that were not
// generated yet. The source is updated first so a concurrent call loses on the
// version check instead of spawning duplicates. When an instance cannot be
// stored, the source is rewound to the instances that were, so a retry
// generates the rest.
func (s *TaskService) CreateRecurringTasks(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, []*model.Task, error) {
	var (
		instances []*model.Task
		previous  *time.Time
	)

	source, err := s.mutate(ctx, "createRecurringTasks", id, actor, s.allow(permission.ActionAssign),
		func(t *model.Task, now time.Time) (change, error) {
			r := t.Recurrence
			if r == nil || !r.Enabled {
				return change{}, model.NewValidationError("recurrence", "task is not recurring")
			}

			previous = r.LastGenerated
			dates, err := pendingDates(t, now)
			if err != nil {
				return change{}, err
			}
			if len(dates) == 0 {
				return change{}, fmt.Errorf("%w: every occurrence was already generated", model.ErrInvalidTransition)
			}

			ids := make([]string, 0, len(dates))
			for _, d := range dates {
				inst := recurrence.NewInstance(t, s.newID(), d, now)
				instances = append(instances, inst)
				r.RelatedTasks = append(r.RelatedTasks, inst.ID)
				ids = append(ids, inst.ID.String())
			}
			last := dates[len(dates)-1]
			r.LastGenerated = &last

			return change{
				action:  model.ActionRecurringTasksCreated,
				details: map[string]any{"count": len(dates), "taskIds": ids},
				notices: []model.Notice{{
					UserID:  t.AssigneeID,
					Title:   "Recurring tasks created",
					Content: fmt.Sprintf("%d new occurrence(s) of %q were scheduled", len(dates), t.Title),
				}},
			}, nil
		})
	if err != nil {
		return nil, nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{"op": "createRecurringTasks", "task_id": id, "actor_id": actor.ID})
	for i, inst := range instances {
		if err := s.store.Create(ctx, inst); err != nil {
			err = s.fail(logger.WithField("instance_id", inst.ID), fmt.Errorf("could not create recurring instance: %w", err))

			rewindTo := previous
			if i > 0 {
				rewindTo = instances[i-1].DueDate
			}
			if rerr := s.rewindRecurrence(ctx, actor, id, instances[i:], rewindTo); rerr != nil {
				logger.WithError(rerr).Error("could not rewind recurring source")
			}
			return nil, nil, err
		}
	}
	return source, instances, nil
}

// rewindRecurrence unlinks instances that were never stored from the source
// task and moves lastGenerated back to the last stored one.
func (s *TaskService) rewindRecurrence(ctx context.Context, actor model.Actor, id uuid.UUID, unsaved []*model.Task, lastGenerated *time.Time) error {
	drop := make(map[uuid.UUID]bool, len(unsaved))
	ids := make([]string, 0, len(unsaved))
	for _, inst := range unsaved {
		drop[inst.ID] = true
		ids = append(ids, inst.ID.String())
	}

	var err error
	for attempt := 0; attempt < maxRewindAttempts; attempt++ {
		var current *model.Task
		current, err = s.store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Recurrence == nil {
			return nil
		}

		next := current.Clone()
		r := next.Recurrence
		r.RelatedTasks = slices.DeleteFunc(r.RelatedTasks, func(related uuid.UUID) bool { return drop[related] })
		r.LastGenerated = lastGenerated

		now := s.clock()
		entry := model.NewAuditEntry(next.ID, model.ActionRecurringTasksRolledBack, actor.ID, now,
			map[string]any{"count": len(ids), "taskIds": ids})
		next.AuditTrail = append(next.AuditTrail, entry)
		next.UpdatedAt = now

		err = s.store.ConditionalUpdate(ctx, next, current.Version, []model.AuditEntry{entry})
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
	}
	return err
}

const maxRewindAttempts = 3

// pendingDates expands the rule from where the last call stopped. Occurrences
// count every instance ever generated, not only this call's.
func pendingDates(t *model.Task, now time.Time) ([]time.Time, error) {
	rule := *t.Recurrence

	start := now
	switch {
	case rule.LastGenerated != nil:
		start = *rule.LastGenerated
	case t.DueDate != nil:
		start = *t.DueDate
	}

	remaining := recurrence.DefaultOccurrences - len(rule.RelatedTasks)
	if rule.Occurrences != nil {
		remaining = *rule.Occurrences - len(rule.RelatedTasks)
	}
	if remaining <= 0 {
		return nil, nil
	}
	rule.Occurrences = &remaining
	return recurrence.CalculateDates(rule, start)
}
