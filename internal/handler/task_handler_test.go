package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taskflow/internal/handler"
	"taskflow/internal/ledger"
	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

// Мок сервиса задач
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) task(args mock.Arguments) (*model.Task, error) {
	t := args.Get(0)
	if t == nil {
		return nil, args.Error(1)
	}
	return t.(*model.Task), args.Error(1)
}

func (m *MockTaskService) AssignTask(ctx context.Context, actor model.Actor, in service.AssignTaskInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, in))
}

func (m *MockTaskService) GetTask(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id))
}

func (m *MockTaskService) Names(ctx context.Context, t *model.Task) map[int64]string {
	args := m.Called(ctx, t)
	return args.Get(0).(map[int64]string)
}

func (m *MockTaskService) UpdateTaskStatus(ctx context.Context, actor model.Actor, id uuid.UUID, in service.StatusInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, in))
}

func (m *MockTaskService) InitializeWorkflow(ctx context.Context, actor model.Actor, id uuid.UUID, in service.WorkflowInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, in))
}

func (m *MockTaskService) ProcessStepAction(ctx context.Context, actor model.Actor, id uuid.UUID, step int, in service.StepActionInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, step, in))
}

func (m *MockTaskService) AdvanceWorkflow(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id))
}

func (m *MockTaskService) AddStepDocuments(ctx context.Context, actor model.Actor, id uuid.UUID, step int, in service.DocumentsInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, step, in))
}

func (m *MockTaskService) AddComment(ctx context.Context, actor model.Actor, id uuid.UUID, in service.CommentInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, in))
}

func (m *MockTaskService) UpdateProgress(ctx context.Context, actor model.Actor, id uuid.UUID, in service.ProgressInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, in))
}

func (m *MockTaskService) CompleteMilestone(ctx context.Context, actor model.Actor, id uuid.UUID, index int) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, index))
}

func (m *MockTaskService) EstimateCompletion(ctx context.Context, actor model.Actor, id uuid.UUID) (*time.Time, error) {
	args := m.Called(ctx, actor, id)
	at, _ := args.Get(0).(*time.Time)
	return at, args.Error(1)
}

func (m *MockTaskService) AddTimeEntry(ctx context.Context, actor model.Actor, id uuid.UUID, in service.TimeEntryInput) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, in))
}

func (m *MockTaskService) UpdateBillingInfo(ctx context.Context, actor model.Actor, id uuid.UUID, in model.Billing) (*model.Task, error) {
	return m.task(m.Called(ctx, actor, id, in))
}

func (m *MockTaskService) BillingSummary(ctx context.Context, actor model.Actor, id uuid.UUID) (ledger.Summary, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(ledger.Summary), args.Error(1)
}

func (m *MockTaskService) CreateRecurringTasks(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Task, []*model.Task, error) {
	args := m.Called(ctx, actor, id)
	source, _ := args.Get(0).(*model.Task)
	instances, _ := args.Get(1).([]*model.Task)
	return source, instances, args.Error(2)
}

var assigner = model.Actor{ID: 1, Role: model.RoleEmployee}

// withActor подставляет аутентифицированного сотрудника вместо JWT middleware
func withActor(a model.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, a.ID)
		c.Set(middleware.RoleKey, a.Role)
		c.Next()
	}
}

func setupTaskTest(a *model.Actor) (*gin.Engine, *MockTaskService) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := new(MockTaskService)
	h := handler.NewTaskHandler(svc, nil)

	g := r.Group("/")
	if a != nil {
		g.Use(withActor(*a))
	}
	g.POST("/tasks", h.Create)
	g.GET("/tasks/:id", h.GetByID)
	g.PUT("/tasks/:id/status", h.UpdateStatus)
	g.POST("/tasks/:id/comments", h.AddComment)
	g.POST("/tasks/:id/workflow", h.InitializeWorkflow)
	g.POST("/tasks/:id/workflow/steps/:step/action", h.StepAction)
	g.POST("/tasks/:id/workflow/advance", h.AdvanceWorkflow)
	g.POST("/tasks/:id/workflow/steps/:step/documents", h.AddStepDocuments)
	g.PUT("/tasks/:id/progress", h.UpdateProgress)
	g.POST("/tasks/:id/milestones/:index/complete", h.CompleteMilestone)
	g.GET("/tasks/:id/estimate", h.Estimate)
	g.POST("/tasks/:id/time-entries", h.AddTimeEntry)
	g.PUT("/tasks/:id/billing", h.UpdateBilling)
	g.GET("/tasks/:id/billing", h.BillingSummary)
	g.POST("/tasks/:id/recurrences", h.CreateRecurring)
	return r, svc
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	} else {
		buf = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func sampleTask() *model.Task {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	id := uuid.New()
	return &model.Task{
		ID:         id,
		Title:      "Quarterly report",
		Status:     model.StatusPendingApproval,
		AssignerID: 1,
		AssigneeID: 2,
		Billing:    model.Billing{RateType: model.RateNonBillable},
		Workflow: &model.Workflow{
			CurrentStep: 1,
			TotalSteps:  1,
			Sequence: []model.Step{
				{Step: 1, Name: "Review", Type: model.StepReview, AssigneeID: 3, Status: model.StepPending},
			},
		},
		AuditTrail: []model.AuditEntry{
			model.NewAuditEntry(id, model.ActionCreated, 1, now, map[string]any{"assigneeId": 2}),
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   2,
	}
}

func TestTaskHandler_Create(t *testing.T) {
	// Arrange
	router, svc := setupTaskTest(&assigner)
	task := sampleTask()
	in := service.AssignTaskInput{Title: "Quarterly report", AssigneeID: 2}

	svc.On("AssignTask", mock.Anything, assigner, in).Return(task, nil)
	svc.On("Names", mock.Anything, task).Return(map[int64]string{1: "Olga Markova", 2: "Pavel Orlov", 3: "Irina Belova"})

	// Act
	resp := doRequest(router, "POST", "/tasks", in)

	// Assert
	assert.Equal(t, http.StatusCreated, resp.Code)

	var body handler.TaskResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, task.ID.String(), body.ID)
	assert.Equal(t, "Olga Markova", body.AssignerName)
	assert.Equal(t, "Pavel Orlov", body.AssigneeName)
	require.NotNil(t, body.Workflow)
	assert.Equal(t, "Irina Belova", body.Workflow.Sequence[0].AssigneeName)
	assert.Equal(t, model.StepReview, body.Workflow.Sequence[0].Type)
	require.Len(t, body.AuditTrail, 1)
	assert.Equal(t, model.ActionCreated, body.AuditTrail[0].Action)
	assert.NotNil(t, body.Milestones)

	svc.AssertExpectations(t)
}

func TestTaskHandler_Unauthenticated(t *testing.T) {
	router, svc := setupTaskTest(nil)

	resp := doRequest(router, "GET", "/tasks/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	svc.AssertNotCalled(t, "GetTask", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskHandler_BadParams(t *testing.T) {
	tests := map[string]struct {
		method string
		path   string
		body   any
		expMsg string
	}{
		"A malformed task id should be rejected.": {
			method: "GET",
			path:   "/tasks/not-a-uuid",
			expMsg: "Invalid task ID format",
		},
		"A non numeric step should be rejected.": {
			method: "POST",
			path:   "/tasks/" + uuid.NewString() + "/workflow/steps/first/action",
			body:   service.StepActionInput{Action: model.StepApprove},
			expMsg: "Invalid step",
		},
		"A non numeric milestone index should be rejected.": {
			method: "POST",
			path:   "/tasks/" + uuid.NewString() + "/milestones/x/complete",
			expMsg: "Invalid index",
		},
		"A malformed body should be rejected.": {
			method: "PUT",
			path:   "/tasks/" + uuid.NewString() + "/progress",
			body:   "not an object",
			expMsg: "Invalid request",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			router, _ := setupTaskTest(&assigner)

			resp := doRequest(router, test.method, test.path, test.body)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Contains(t, resp.Body.String(), test.expMsg)
		})
	}
}

func TestTaskHandler_ErrorMapping(t *testing.T) {
	tests := map[string]struct {
		err       error
		release   bool
		expStatus int
		expBody   string
	}{
		"A missing task should be 404.": {
			err:       fmt.Errorf("%w: task", model.ErrNotFound),
			expStatus: http.StatusNotFound,
		},
		"A denied action should be 403 with the reason outside release mode.": {
			err:       fmt.Errorf("%w: status-change denied", model.ErrForbidden),
			expStatus: http.StatusForbidden,
			expBody:   "status-change denied",
		},
		"A denied action should be a generic 403 in release mode.": {
			err:       fmt.Errorf("%w: status-change denied", model.ErrForbidden),
			release:   true,
			expStatus: http.StatusForbidden,
			expBody:   `{"error":"Forbidden"}`,
		},
		"An invalid transition should be 400.": {
			err:       fmt.Errorf("%w: new -> approved", model.ErrInvalidTransition),
			expStatus: http.StatusBadRequest,
		},
		"An invalid step action should be 400.": {
			err:       fmt.Errorf("%w: step 1 already processed", model.ErrInvalidStepAction),
			expStatus: http.StatusBadRequest,
		},
		"A validation error should be 400 with field details.": {
			err:       model.NewValidationError("status", "unknown status"),
			expStatus: http.StatusBadRequest,
			expBody:   `"fields":{"status":"unknown status"}`,
		},
		"A stale write should be 409.": {
			err:       fmt.Errorf("%w: version 3", model.ErrConflict),
			expStatus: http.StatusConflict,
		},
		"An unknown failure should be 500 without details.": {
			err:       errors.New("connection refused"),
			expStatus: http.StatusInternalServerError,
			expBody:   "Internal server error",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			router, svc := setupTaskTest(&assigner)
			if test.release {
				gin.SetMode(gin.ReleaseMode)
				defer gin.SetMode(gin.TestMode)
			}
			id := uuid.New()
			in := service.StatusInput{Status: model.StatusInProgress}
			svc.On("UpdateTaskStatus", mock.Anything, assigner, id, in).Return(nil, test.err)

			resp := doRequest(router, "PUT", "/tasks/"+id.String()+"/status", in)

			assert.Equal(t, test.expStatus, resp.Code)
			if test.expBody != "" {
				assert.Contains(t, resp.Body.String(), test.expBody)
			}
			assert.NotContains(t, resp.Body.String(), "connection refused")
		})
	}
}

func TestTaskHandler_Routes(t *testing.T) {
	id := uuid.New()
	base := "/tasks/" + id.String()
	rate := 50.0

	tests := map[string]struct {
		method    string
		path      string
		body      any
		setup     func(svc *MockTaskService, task *model.Task)
		expStatus int
	}{
		"Reading a task should return it.": {
			method: "GET", path: base,
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("GetTask", mock.Anything, assigner, id).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
		"Commenting should return 201.": {
			method: "POST", path: base + "/comments",
			body: service.CommentInput{Text: "looks good"},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("AddComment", mock.Anything, assigner, id, service.CommentInput{Text: "looks good"}).Return(task, nil)
			},
			expStatus: http.StatusCreated,
		},
		"Initializing a workflow from a template should pass it through.": {
			method: "POST", path: base + "/workflow",
			body: service.WorkflowInput{Template: "expense"},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("InitializeWorkflow", mock.Anything, assigner, id, service.WorkflowInput{Template: "expense"}).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
		"A step action should carry the step number.": {
			method: "POST", path: base + "/workflow/steps/2/action",
			body: service.StepActionInput{Action: model.StepReject, Notes: "missing receipts"},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("ProcessStepAction", mock.Anything, assigner, id, 2,
					service.StepActionInput{Action: model.StepReject, Notes: "missing receipts"}).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
		"Advancing should return the task.": {
			method: "POST", path: base + "/workflow/advance",
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("AdvanceWorkflow", mock.Anything, assigner, id).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
		"Adding step documents should return 201.": {
			method: "POST", path: base + "/workflow/steps/1/documents",
			body: service.DocumentsInput{Documents: []model.Attachment{{Name: "a.pdf", URL: "https://files.example.com/a.pdf"}}},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("AddStepDocuments", mock.Anything, assigner, id, 1, mock.AnythingOfType("service.DocumentsInput")).Return(task, nil)
			},
			expStatus: http.StatusCreated,
		},
		"Reporting progress should return the task.": {
			method: "PUT", path: base + "/progress",
			body: service.ProgressInput{Progress: 60},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("UpdateProgress", mock.Anything, assigner, id, service.ProgressInput{Progress: 60}).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
		"Completing a milestone should carry the index.": {
			method: "POST", path: base + "/milestones/0/complete",
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("CompleteMilestone", mock.Anything, assigner, id, 0).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
		"Logging time should return 201.": {
			method: "POST", path: base + "/time-entries",
			body: service.TimeEntryInput{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Hours: 2.5},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("AddTimeEntry", mock.Anything, assigner, id, mock.AnythingOfType("service.TimeEntryInput")).Return(task, nil)
			},
			expStatus: http.StatusCreated,
		},
		"Updating billing should return the task.": {
			method: "PUT", path: base + "/billing",
			body: model.Billing{Billable: true, RateType: model.RateHourly, Rate: &rate, Currency: "EUR"},
			setup: func(svc *MockTaskService, task *model.Task) {
				svc.On("UpdateBillingInfo", mock.Anything, assigner, id, mock.AnythingOfType("model.Billing")).Return(task, nil)
			},
			expStatus: http.StatusOK,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			router, svc := setupTaskTest(&assigner)
			task := sampleTask()
			test.setup(svc, task)
			svc.On("Names", mock.Anything, task).Return(map[int64]string{})

			resp := doRequest(router, test.method, test.path, test.body)

			assert.Equal(t, test.expStatus, resp.Code)
			var body handler.TaskResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, task.ID.String(), body.ID)
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_Estimate(t *testing.T) {
	router, svc := setupTaskTest(&assigner)
	id := uuid.New()
	at := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	svc.On("EstimateCompletion", mock.Anything, assigner, id).Return(&at, nil)

	resp := doRequest(router, "GET", "/tasks/"+id.String()+"/estimate", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	var body handler.EstimateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotNil(t, body.EstimatedCompletion)
	assert.True(t, at.Equal(*body.EstimatedCompletion))
}

func TestTaskHandler_BillingSummary(t *testing.T) {
	router, svc := setupTaskTest(&assigner)
	id := uuid.New()
	summary := ledger.Summary{ActualHours: 13, BillableHours: 13, Amount: 650, RateType: model.RateHourly, Currency: "USD"}
	svc.On("BillingSummary", mock.Anything, assigner, id).Return(summary, nil)

	resp := doRequest(router, "GET", "/tasks/"+id.String()+"/billing", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ledger.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, summary, body)
}

func TestTaskHandler_CreateRecurring(t *testing.T) {
	router, svc := setupTaskTest(&assigner)
	source := sampleTask()
	first, second := sampleTask(), sampleTask()
	svc.On("CreateRecurringTasks", mock.Anything, assigner, source.ID).Return(source, []*model.Task{first, second}, nil)
	svc.On("Names", mock.Anything, mock.Anything).Return(map[int64]string{2: "Pavel Orlov"})

	resp := doRequest(router, "POST", "/tasks/"+source.ID.String()+"/recurrences", nil)

	assert.Equal(t, http.StatusCreated, resp.Code)
	var body handler.RecurringResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, source.ID.String(), body.Source.ID)
	require.Len(t, body.Instances, 2)
	assert.Equal(t, "Pavel Orlov", body.Instances[1].AssigneeName)
}
