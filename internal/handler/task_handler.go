package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskflow/internal/ledger"
	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

// TaskService is the engine surface the HTTP layer drives.
type TaskService interface {
	AssignTask(ctx context.Context, actor model.Actor, in service.AssignTaskInput) (*model.Task, error)
	GetTask(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, error)
	Names(ctx context.Context, t *model.Task) map[int64]string
	UpdateTaskStatus(ctx context.Context, actor model.Actor, id uuid.UUID, in service.StatusInput) (*model.Task, error)
	InitializeWorkflow(ctx context.Context, actor model.Actor, id uuid.UUID, in service.WorkflowInput) (*model.Task, error)
	ProcessStepAction(ctx context.Context, actor model.Actor, id uuid.UUID, step int, in service.StepActionInput) (*model.Task, error)
	AdvanceWorkflow(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, error)
	AddStepDocuments(ctx context.Context, actor model.Actor, id uuid.UUID, step int, in service.DocumentsInput) (*model.Task, error)
	AddComment(ctx context.Context, actor model.Actor, id uuid.UUID, in service.CommentInput) (*model.Task, error)
	UpdateProgress(ctx context.Context, actor model.Actor, id uuid.UUID, in service.ProgressInput) (*model.Task, error)
	CompleteMilestone(ctx context.Context, actor model.Actor, id uuid.UUID, index int) (*model.Task, error)
	EstimateCompletion(ctx context.Context, actor model.Actor, id uuid.UUID) (*time.Time, error)
	AddTimeEntry(ctx context.Context, actor model.Actor, id uuid.UUID, in service.TimeEntryInput) (*model.Task, error)
	UpdateBillingInfo(ctx context.Context, actor model.Actor, id uuid.UUID, in model.Billing) (*model.Task, error)
	BillingSummary(ctx context.Context, actor model.Actor, id uuid.UUID) (ledger.Summary, error)
	CreateRecurringTasks(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, []*model.Task, error)
}

var _ TaskService = (*service.TaskService)(nil)

type TaskHandler struct {
	svc    TaskService
	logger logrus.FieldLogger
}

func NewTaskHandler(svc TaskService, logger logrus.FieldLogger) *TaskHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TaskHandler{svc: svc, logger: logger.WithField("svc", "handler.Task")}
}

// TaskResponse представляет ответ с данными задачи
type TaskResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Status       model.Status      `json:"status"`
	AssignerID   int64             `json:"assignerId"`
	AssignerName string            `json:"assignerName,omitempty"`
	AssigneeID   int64             `json:"assigneeId"`
	AssigneeName string            `json:"assigneeName,omitempty"`
	DueDate      *time.Time        `json:"dueDate,omitempty"`
	Progress     int               `json:"progress"`
	Milestones   []model.Milestone `json:"milestones"`
	TimeEntries  []model.TimeEntry `json:"timeEntries"`
	ActualHours  float64           `json:"actualHours"`
	Billing      model.Billing     `json:"billing"`
	Workflow     *WorkflowResponse `json:"workflow,omitempty"`
	Comments     []model.Comment   `json:"comments"`
	Recurrence   *model.Recurrence `json:"recurrence,omitempty"`
	SourceTaskID *uuid.UUID        `json:"sourceTaskId,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	AuditTrail   []AuditResponse   `json:"auditTrail"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Version      int               `json:"version"`
}

type WorkflowResponse struct {
	CurrentStep         int            `json:"currentStep"`
	TotalSteps          int            `json:"totalSteps"`
	AutoAdvance         bool           `json:"autoAdvance"`
	RequireAllApprovals bool           `json:"requireAllApprovals"`
	Sequence            []StepResponse `json:"sequence"`
}

type StepResponse struct {
	model.Step
	AssigneeName string `json:"assigneeName,omitempty"`
}

type AuditResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    int64          `json:"userId"`
	Details   map[string]any `json:"details"`
}

// RecurringResponse is the source task plus the instances it spawned.
type RecurringResponse struct {
	Source    TaskResponse   `json:"source"`
	Instances []TaskResponse `json:"instances"`
}

type EstimateResponse struct {
	EstimatedCompletion *time.Time `json:"estimatedCompletion"`
}

func newTaskResponse(t *model.Task, names map[int64]string) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID.String(),
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		AssignerID:   t.AssignerID,
		AssignerName: names[t.AssignerID],
		AssigneeID:   t.AssigneeID,
		AssigneeName: names[t.AssigneeID],
		DueDate:      t.DueDate,
		Progress:     t.Progress,
		Milestones:   nonNil(t.Milestones),
		TimeEntries:  nonNil(t.TimeEntries),
		ActualHours:  t.ActualHours,
		Billing:      t.Billing,
		Comments:     nonNil(t.Comments),
		Recurrence:   t.Recurrence,
		SourceTaskID: t.SourceTaskID,
		CompletedAt:  t.CompletedAt,
		AuditTrail:   make([]AuditResponse, 0, len(t.AuditTrail)),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Version:      t.Version,
	}

	if w := t.Workflow; w != nil {
		wr := &WorkflowResponse{
			CurrentStep:         w.CurrentStep,
			TotalSteps:          w.TotalSteps,
			AutoAdvance:         w.AutoAdvance,
			RequireAllApprovals: w.RequireAllApprovals,
			Sequence:            make([]StepResponse, 0, len(w.Sequence)),
		}
		for _, s := range w.Sequence {
			wr.Sequence = append(wr.Sequence, StepResponse{Step: s, AssigneeName: names[s.AssigneeID]})
		}
		resp.Workflow = wr
	}

	for _, e := range t.AuditTrail {
		resp.AuditTrail = append(resp.AuditTrail, AuditResponse{
			ID:        e.ID.String(),
			Action:    e.Action,
			Timestamp: e.Timestamp,
			UserID:    e.UserID,
			Details:   e.Details,
		})
	}
	return resp
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (h *TaskHandler) respondTask(c *gin.Context, status int, t *model.Task) {
	c.JSON(status, newTaskResponse(t, h.svc.Names(c.Request.Context(), t)))
}

// respondError maps the engine error taxonomy onto HTTP statuses.
func (h *TaskHandler) respondError(c *gin.Context, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": model.ErrValidation.Error(), "fields": verr.Fields})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrForbidden):
		// В release режиме причину отказа не раскрываем
		msg := err.Error()
		if gin.Mode() == gin.ReleaseMode {
			msg = "Forbidden"
		}
		c.JSON(http.StatusForbidden, gin.H{"error": msg})
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrInvalidStepAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func actor(c *gin.Context) (model.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return model.Actor{}, false
	}
	return a, true
}

func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return uuid.Nil, false
	}
	return id, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return n, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	return true
}

// Create godoc
// @Summary      Assign a task
// @Description  Creates a task assigned by the authenticated employee
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        request  body      service.AssignTaskInput  true  "Task"
// @Success      201      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req service.AssignTaskInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.AssignTask(c.Request.Context(), a, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusCreated, t)
}

// GetByID godoc
// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  TaskResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	t, err := h.svc.GetTask(c.Request.Context(), a, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// UpdateStatus godoc
// @Summary      Change the task status
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Task ID"
// @Param        request  body      service.StatusInput  true  "Status"
// @Success      200      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/status [put]
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req service.StatusInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.UpdateTaskStatus(c.Request.Context(), a, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// AddComment godoc
// @Summary      Comment on a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Task ID"
// @Param        request  body      service.CommentInput  true  "Comment"
// @Success      201      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/comments [post]
func (h *TaskHandler) AddComment(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req service.CommentInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.AddComment(c.Request.Context(), a, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusCreated, t)
}

// CreateRecurring godoc
// @Summary      Spawn the pending recurring instances of a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      201  {object}  RecurringResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/recurrences [post]
func (h *TaskHandler) CreateRecurring(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	source, instances, err := h.svc.CreateRecurringTasks(c.Request.Context(), a, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	resp := RecurringResponse{
		Source:    newTaskResponse(source, h.svc.Names(ctx, source)),
		Instances: make([]TaskResponse, 0, len(instances)),
	}
	for _, t := range instances {
		resp.Instances = append(resp.Instances, newTaskResponse(t, h.svc.Names(ctx, t)))
	}
	c.JSON(http.StatusCreated, resp)
}
