package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
	"taskflow/internal/repository/memory"
)

func seed(t *testing.T, s *memory.TaskStore) *model.Task {
	t.Helper()
	id := uuid.New()
	task := &model.Task{
		ID:         id,
		Title:      "Prepare audit",
		Status:     model.StatusNew,
		AssignerID: 1,
		AssigneeID: 2,
		Version:    1,
		AuditTrail: []model.AuditEntry{model.NewAuditEntry(id, model.ActionCreated, 1, time.Now(), nil)},
	}
	require.NoError(t, s.Create(context.Background(), task))
	return task
}

func TestTaskStore_FindByIDReturnsACopy(t *testing.T) {
	s := memory.NewTaskStore()
	task := seed(t, s)

	got, err := s.FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	got.Title = "changed"
	got.AuditTrail[0].Details["x"] = 1

	again, err := s.FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Prepare audit", again.Title)
	assert.Empty(t, again.AuditTrail[0].Details)
}

func TestTaskStore_FindByIDNotFound(t *testing.T) {
	s := memory.NewTaskStore()

	_, err := s.FindByID(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestTaskStore_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := memory.NewTaskStore()
	task := seed(t, s)

	first, _ := s.FindByID(ctx, task.ID)
	second, _ := s.FindByID(ctx, task.ID)

	first.Status = model.StatusInProgress
	entry := model.NewAuditEntry(task.ID, model.ActionStatusChanged, 2, time.Now(), nil)
	first.AuditTrail = append(first.AuditTrail, entry)
	require.NoError(t, s.ConditionalUpdate(ctx, first, 1, []model.AuditEntry{entry}))
	assert.Equal(t, 2, first.Version)

	second.Status = model.StatusCancelled
	err := s.ConditionalUpdate(ctx, second, 1, nil)
	assert.True(t, errors.Is(err, model.ErrConflict))

	got, err := s.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.AuditTrail, 2)
}

func TestTaskStore_AppendAuditSurvivesUpdate(t *testing.T) {
	ctx := context.Background()
	s := memory.NewTaskStore()
	task := seed(t, s)

	loaded, _ := s.FindByID(ctx, task.ID)
	require.NoError(t, s.AppendAudit(ctx, model.NewAuditEntry(task.ID, model.ActionPermissionDenied, 9, time.Now(), nil)))
	require.NoError(t, s.ConditionalUpdate(ctx, loaded, 1, nil))

	got, _ := s.FindByID(ctx, task.ID)
	require.Len(t, got.AuditTrail, 2)
	assert.Equal(t, model.ActionPermissionDenied, got.AuditTrail[1].Action)

	err := s.AppendAudit(ctx, model.NewAuditEntry(uuid.New(), model.ActionPermissionDenied, 9, time.Now(), nil))
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDirectory(t *testing.T) {
	d := memory.NewDirectory(model.Employee{ID: 1, Name: "Ana Petrova"})
	d.Add(model.Employee{ID: 2, Name: "Ivan Sokolov"})

	name, err := d.ResolveName(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Ivan Sokolov", name)

	_, err = d.ResolveName(context.Background(), 3)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDirectory_Create(t *testing.T) {
	ctx := context.Background()
	d := memory.NewDirectory(model.Employee{ID: 4, Name: "Ana Petrova", Email: "ana@example.com"})

	e := &model.Employee{Name: "Ivan Sokolov", Email: "ivan@example.com"}
	require.NoError(t, d.Create(ctx, e))
	assert.Equal(t, int64(5), e.ID)
	assert.Equal(t, model.RoleEmployee, e.Role)

	err := d.Create(ctx, &model.Employee{Name: "Other", Email: "ana@example.com"})
	assert.True(t, errors.Is(err, model.ErrConflict))

	found, err := d.FindByEmail(ctx, "ivan@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.ID)

	missing, err := d.FindByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInbox(t *testing.T) {
	ctx := context.Background()
	in := memory.NewInbox()
	require.NoError(t, in.Create(ctx, &model.Notification{UserID: 1, Title: "a"}))
	require.NoError(t, in.Create(ctx, &model.Notification{UserID: 2, Title: "b"}))

	got, err := in.ListByUser(ctx, 1)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Title)
}
