package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taskflow/internal/model"
)

// taskRecord is the row of the tasks table. Nested collections are jsonb columns.
type taskRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title        string
	Description  string
	Status       string
	AssignerID   int64
	AssigneeID   int64
	DueDate      *time.Time
	Progress     int
	Milestones   datatypes.JSONSlice[model.Milestone]
	TimeEntries  datatypes.JSONSlice[model.TimeEntry]
	ActualHours  float64
	Billing      datatypes.JSONType[model.Billing]
	Workflow     datatypes.JSONType[*model.Workflow]
	Comments     datatypes.JSONSlice[model.Comment]
	Recurrence   datatypes.JSONType[*model.Recurrence]
	SourceTaskID *uuid.UUID `gorm:"type:uuid"`
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int
}

func (taskRecord) TableName() string { return "tasks" }

type auditRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TaskID     uuid.UUID `gorm:"type:uuid"`
	Action     string
	UserID     int64
	Details    datatypes.JSONMap
	OccurredAt time.Time
}

func (auditRecord) TableName() string { return "task_audit_entries" }

func toRecord(t *model.Task) taskRecord {
	return taskRecord{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		AssignerID:   t.AssignerID,
		AssigneeID:   t.AssigneeID,
		DueDate:      t.DueDate,
		Progress:     t.Progress,
		Milestones:   t.Milestones,
		TimeEntries:  t.TimeEntries,
		ActualHours:  t.ActualHours,
		Billing:      datatypes.NewJSONType(t.Billing),
		Workflow:     datatypes.NewJSONType(t.Workflow),
		Comments:     t.Comments,
		Recurrence:   datatypes.NewJSONType(t.Recurrence),
		SourceTaskID: t.SourceTaskID,
		CompletedAt:  t.CompletedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Version:      t.Version,
	}
}

func (r taskRecord) toModel() *model.Task {
	return &model.Task{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       model.Status(r.Status),
		AssignerID:   r.AssignerID,
		AssigneeID:   r.AssigneeID,
		DueDate:      r.DueDate,
		Progress:     r.Progress,
		Milestones:   r.Milestones,
		TimeEntries:  r.TimeEntries,
		ActualHours:  r.ActualHours,
		Billing:      r.Billing.Data(),
		Workflow:     r.Workflow.Data(),
		Comments:     r.Comments,
		Recurrence:   r.Recurrence.Data(),
		SourceTaskID: r.SourceTaskID,
		CompletedAt:  r.CompletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Version:      r.Version,
	}
}

func toAuditRecords(entries []model.AuditEntry) []auditRecord {
	out := make([]auditRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditRecord{
			ID:         e.ID,
			TaskID:     e.TaskID,
			Action:     e.Action,
			UserID:     e.UserID,
			Details:    datatypes.JSONMap(e.Details),
			OccurredAt: e.Timestamp,
		})
	}
	return out
}

func (a auditRecord) toModel() model.AuditEntry {
	details := map[string]any(a.Details)
	if details == nil {
		details = map[string]any{}
	}
	return model.AuditEntry{
		ID:        a.ID,
		TaskID:    a.TaskID,
		Action:    a.Action,
		Timestamp: a.OccurredAt,
		UserID:    a.UserID,
		Details:   details,
	}
}

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID loads the task with its audit trail in occurrence order.
func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "task %s", id)
	}

	var audits []auditRecord
	err := r.db.WithContext(ctx).
		Where("task_id = ?", id).
		Order("occurred_at").
		Find(&audits).Error
	if err != nil {
		return nil, fmt.Errorf("could not load audit trail: %w", err)
	}

	t := rec.toModel()
	for _, a := range audits {
		t.AuditTrail = append(t.AuditTrail, a.toModel())
	}
	return t, nil
}

// Create inserts the task and its initial audit trail in one transaction.
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	rec := toRecord(t)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("could not create task: %w", err)
		}
		if len(t.AuditTrail) == 0 {
			return nil
		}
		audits := toAuditRecords(t.AuditTrail)
		if err := tx.Create(&audits).Error; err != nil {
			return fmt.Errorf("could not create audit entries: %w", err)
		}
		return nil
	})
}

// ConditionalUpdate writes the task only if nobody bumped the version since it
// was loaded. The audit entries go in the same transaction.
func (r *TaskRepository) ConditionalUpdate(ctx context.Context, t *model.Task, expectedVersion int, entries []model.AuditEntry) error {
	rec := toRecord(t)
	rec.Version = expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&taskRecord{}).
			Where("id = ? AND version = ?", t.ID, expectedVersion).
			Updates(map[string]interface{}{
				"title":        rec.Title,
				"description":  rec.Description,
				"status":       rec.Status,
				"due_date":     rec.DueDate,
				"progress":     rec.Progress,
				"milestones":   rec.Milestones,
				"time_entries": rec.TimeEntries,
				"actual_hours": rec.ActualHours,
				"billing":      rec.Billing,
				"workflow":     rec.Workflow,
				"comments":     rec.Comments,
				"recurrence":   rec.Recurrence,
				"completed_at": rec.CompletedAt,
				"updated_at":   rec.UpdatedAt,
				"version":      rec.Version,
			})
		if res.Error != nil {
			return fmt.Errorf("could not update task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&taskRecord{}).Where("id = ?", t.ID).Count(&n).Error; err != nil {
				return fmt.Errorf("could not check task: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: task %s", model.ErrNotFound, t.ID)
			}
			return fmt.Errorf("%w: task %s was modified concurrently", model.ErrConflict, t.ID)
		}

		if len(entries) == 0 {
			return nil
		}
		audits := toAuditRecords(entries)
		if err := tx.Create(&audits).Error; err != nil {
			return fmt.Errorf("could not create audit entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.Version = rec.Version
	return nil
}

// AppendAudit records an entry outside of any task update.
func (r *TaskRepository) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	audits := toAuditRecords([]model.AuditEntry{entry})
	if err := r.db.WithContext(ctx).Create(&audits[0]).Error; err != nil {
		return fmt.Errorf("could not create audit entry: %w", err)
	}
	return nil
}
