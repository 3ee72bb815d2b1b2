// Package service is the task orchestrator. Every mutation follows the same
// sequence: load the snapshot, check permission, check legality, mutate a copy,
// persist it with one audit entry, then dispatch notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskflow/internal/ledger"
	"taskflow/internal/logging"
	"taskflow/internal/metrics"
	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/progress"
	"taskflow/internal/recurrence"
	"taskflow/internal/transition"
	"taskflow/internal/workflow"
)

// TaskStore is the record store of the engine.
type TaskStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	Create(ctx context.Context, t *model.Task) error
	// ConditionalUpdate persists t and entries atomically when the stored
	// version equals expectedVersion, and bumps t.Version. A stale version is model.ErrConflict.
	ConditionalUpdate(ctx context.Context, t *model.Task, expectedVersion int, entries []model.AuditEntry) error
	AppendAudit(ctx context.Context, entry model.AuditEntry) error
}

// Notifier delivers notices. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, userID int64, title, content string)
}

// Directory resolves employee names for responses.
type Directory interface {
	ResolveName(ctx context.Context, id int64) (string, error)
}

type ServiceConfig struct {
	Store     TaskStore
	Notifier  Notifier
	Directory Directory
	Metrics   metrics.Recorder
	Evaluator permission.Evaluator
	Catalog   *workflow.Catalog
	Logger    logrus.FieldLogger
	Clock     func() time.Time
	NewID     func() uuid.UUID
}

func (c *ServiceConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Notifier == nil {
		return fmt.Errorf("notifier is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Catalog == nil {
		c.Catalog = &workflow.Catalog{}
	}
	if c.Logger == nil {
		c.Logger = logging.Logger
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.New
	}
	c.Logger = c.Logger.WithField("svc", "service.Task")
	return nil
}

type TaskService struct {
	store     TaskStore
	notifier  Notifier
	directory Directory
	metrics   metrics.Recorder
	evaluator permission.Evaluator
	catalog   *workflow.Catalog
	validator *validator.Validate
	logger    logrus.FieldLogger
	clock     func() time.Time
	newID     func() uuid.UUID
}

func NewTaskService(cfg ServiceConfig) (*TaskService, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskService{
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		directory: cfg.Directory,
		metrics:   cfg.Metrics,
		evaluator: cfg.Evaluator,
		catalog:   cfg.Catalog,
		validator: newValidator(),
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		newID:     cfg.NewID,
	}, nil
}

// change is what a mutation reports back to mutate.
type change struct {
	action   string
	details  map[string]any
	notices  []model.Notice
	bypassed bool
}

// gate decides whether the actor may run a mutation on the loaded snapshot.
type gate func(t *model.Task, actor model.Actor) permission.Decision

func (s *TaskService) allow(action permission.Action) gate {
	return func(t *model.Task, actor model.Actor) permission.Decision {
		return s.evaluator.Authorize(t, actor, action)
	}
}

// mutate runs one state changing operation against the task.
func (s *TaskService) mutate(ctx context.Context, op string, id uuid.UUID, actor model.Actor, check gate,
	fn func(t *model.Task, now time.Time) (change, error)) (*model.Task, error) {
	logger := s.logger.WithFields(logrus.Fields{"op": op, "task_id": id, "actor_id": actor.ID})

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(logger, err)
	}

	decision := check(current, actor)
	if !decision.Allowed {
		s.denied(ctx, logger, current, actor, op, "permission")
		return nil, fmt.Errorf("%w: %s is not permitted on this task", model.ErrForbidden, op)
	}

	now := s.clock()
	next := current.Clone()
	ch, err := fn(next, now)
	if err != nil {
		if errors.Is(err, model.ErrForbidden) {
			s.denied(ctx, logger, current, actor, op, err.Error())
		}
		return nil, s.fail(logger, err)
	}

	if ch.details == nil {
		ch.details = map[string]any{}
	}
	if decision.Bypassed || ch.bypassed {
		ch.details["bypass"] = string(actor.Role)
	}
	entry := model.NewAuditEntry(next.ID, ch.action, actor.ID, now, ch.details)
	next.AuditTrail = append(next.AuditTrail, entry)
	next.UpdatedAt = now

	if err := s.store.ConditionalUpdate(ctx, next, current.Version, []model.AuditEntry{entry}); err != nil {
		return nil, s.fail(logger, err)
	}

	if current.Status != next.Status {
		s.metrics.StatusTransition(current.Status, next.Status)
	}
	logger.WithField("action", ch.action).Debug("task updated")
	s.dispatch(ctx, actor, ch.notices)
	return next, nil
}

// read loads the task for a query guarded by view permission.
func (s *TaskService) read(ctx context.Context, op string, id uuid.UUID, actor model.Actor) (*model.Task, error) {
	logger := s.logger.WithFields(logrus.Fields{"op": op, "task_id": id, "actor_id": actor.ID})

	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(logger, err)
	}
	if !s.evaluator.Authorize(t, actor, permission.ActionView).Allowed {
		s.denied(ctx, logger, t, actor, op, "permission")
		return nil, fmt.Errorf("%w: %s is not permitted on this task", model.ErrForbidden, op)
	}
	return t, nil
}

// fail logs internal failures with their context. Client errors pass through quietly.
func (s *TaskService) fail(logger logrus.FieldLogger, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrInvalidStepAction),
		errors.Is(err, model.ErrValidation):
		logger.WithError(err).Debug("request rejected")
	case errors.Is(err, model.ErrConflict):
		logger.WithError(err).Info("concurrent update lost")
	default:
		logger.WithError(err).Error("task operation failed")
	}
	return err
}

// denied records a refused attempt. Failing to record it never changes the outcome.
func (s *TaskService) denied(ctx context.Context, logger logrus.FieldLogger, t *model.Task, actor model.Actor, op, reason string) {
	entry := model.NewAuditEntry(t.ID, model.ActionPermissionDenied, actor.ID, s.clock(), map[string]any{
		"operation": op,
		"reason":    reason,
	})
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		logger.WithError(err).Warn("could not record permission denial")
	}
}

// dispatch sends the notices, skipping the ones addressed to the actor.
func (s *TaskService) dispatch(ctx context.Context, actor model.Actor, notices []model.Notice) {
	for _, n := range notices {
		if n.UserID == 0 || n.UserID == actor.ID {
			continue
		}
		s.notifier.Notify(ctx, n.UserID, n.Title, n.Content)
	}
}

// AssignTask creates a task owned by the actor and assigned to in.AssigneeID.
func (s *TaskService) AssignTask(ctx context.Context, actor model.Actor, in AssignTaskInput) (*model.Task, error) {
	logger := s.logger.WithFields(logrus.Fields{"op": "assignTask", "actor_id": actor.ID})

	if err := s.validate(in); err != nil {
		return nil, s.fail(logger, err)
	}

	billing := model.Billing{RateType: model.RateNonBillable}
	if in.Billing != nil {
		b, err := ledger.Normalize(*in.Billing)
		if err != nil {
			return nil, s.fail(logger, err)
		}
		billing = b
	}

	var rule *model.Recurrence
	if in.Recurrence != nil {
		r := *in.Recurrence
		if r.Enabled {
			if err := recurrence.Validate(r); err != nil {
				return nil, s.fail(logger, err)
			}
		}
		r.RelatedTasks = []uuid.UUID{}
		r.LastGenerated = nil
		rule = &r
	}

	now := s.clock()
	status := model.StatusNew
	if in.Draft {
		status = model.StatusDraft
	}

	t := &model.Task{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		AssignerID:  actor.ID,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		Billing:     billing,
		Recurrence:  rule,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	for _, m := range in.Milestones {
		t.Milestones = append(t.Milestones, model.Milestone{Title: m.Title, DueDate: m.DueDate, Status: model.MilestonePending})
	}
	progress.RefreshMilestones(t, now)

	t.AuditTrail = []model.AuditEntry{model.NewAuditEntry(t.ID, model.ActionCreated, actor.ID, now, map[string]any{
		"assigneeId": t.AssigneeID,
		"status":     string(t.Status),
	})}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, s.fail(logger.WithField("task_id", t.ID), err)
	}

	s.dispatch(ctx, actor, []model.Notice{{
		UserID:  t.AssigneeID,
		Title:   "New task assigned",
		Content: fmt.Sprintf("You have been assigned %q", t.Title),
	}})
	return t, nil
}

// GetTask returns the task snapshot.
func (s *TaskService) GetTask(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, error) {
	return s.read(ctx, "getTask", id, actor)
}

// Names resolves every employee referenced by the task. Unknown ids are left out.
func (s *TaskService) Names(ctx context.Context, t *model.Task) map[int64]string {
	names := map[int64]string{}
	if s.directory == nil {
		return names
	}

	ids := []int64{t.AssignerID, t.AssigneeID}
	if t.Workflow != nil {
		for _, st := range t.Workflow.Sequence {
			ids = append(ids, st.AssigneeID)
		}
	}
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		name, err := s.directory.ResolveName(ctx, id)
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				s.logger.WithError(err).WithField("employee_id", id).Warn("could not resolve employee name")
			}
			continue
		}
		names[id] = name
	}
	return names
}

// UpdateTaskStatus moves the task to another status.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, actor model.Actor, id uuid.UUID, in StatusInput) (*model.Task, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "updateTaskStatus", id, actor, s.allow(permission.ActionStatusChange),
		func(t *model.Task, now time.Time) (change, error) {
			var ch change
			if err := transition.Check(t, in.Status, actor.ID); err != nil {
				if !errors.Is(err, model.ErrForbidden) || !s.evaluator.Bypass(actor) {
					return ch, err
				}
				ch.bypassed = true
			}

			from := t.Status
			t.Status = in.Status
			if in.Status == model.StatusCompleted {
				at := now
				t.CompletedAt = &at
				t.Progress = 100
			}

			ch.action = model.ActionStatusChanged
			ch.details = map[string]any{"from": string(from), "to": string(in.Status), "notes": in.Notes}
			ch.notices = statusNotices(t, from, actor)
			return ch, nil
		})
}

// statusNotices decides who hears about a status change.
func statusNotices(t *model.Task, from model.Status, actor model.Actor) []model.Notice {
	content := fmt.Sprintf("Task %q moved from %s to %s", t.Title, from, t.Status)
	title := "Task status changed"

	var out []model.Notice
	switch t.Status {
	case model.StatusInProgress, model.StatusCompleted:
		out = append(out, model.Notice{UserID: t.AssignerID, Title: title, Content: content})
	case model.StatusPendingApproval:
		out = append(out, model.Notice{UserID: t.AssignerID, Title: title, Content: content})
		if t.Workflow != nil {
			if cur, ok := t.Workflow.Current(); ok && cur.Status == model.StepPending {
				out = append(out, model.Notice{
					UserID:  cur.AssigneeID,
					Title:   "Approval required",
					Content: fmt.Sprintf("Task %q is waiting for your %s at step %d (%s)", t.Title, cur.Type, cur.Step, cur.Name),
				})
			}
		}
	case model.StatusApproved, model.StatusRejected:
		out = append(out, model.Notice{UserID: t.AssigneeID, Title: title, Content: content})
	case model.StatusCancelled:
		to := t.AssigneeID
		if actor.ID == t.AssigneeID {
			to = t.AssignerID
		}
		out = append(out, model.Notice{UserID: to, Title: "Task cancelled", Content: content})
	case model.StatusDraft, model.StatusNew:
	}
	return out
}
