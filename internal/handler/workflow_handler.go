package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/service"
)

// InitializeWorkflow godoc
// @Summary      Start an approval workflow
// @Description  Steps are given explicitly or taken from a named template
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Task ID"
// @Param        request  body      service.WorkflowInput  true  "Workflow"
// @Success      200      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/workflow [post]
func (h *TaskHandler) InitializeWorkflow(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req service.WorkflowInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.InitializeWorkflow(c.Request.Context(), a, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// StepAction godoc
// @Summary      Approve, reject or request changes on a workflow step
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Task ID"
// @Param        step     path      int                      true  "Step number"
// @Param        request  body      service.StepActionInput  true  "Action"
// @Success      200      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/workflow/steps/{step}/action [post]
func (h *TaskHandler) StepAction(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	step, ok := intParam(c, "step")
	if !ok {
		return
	}

	var req service.StepActionInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.ProcessStepAction(c.Request.Context(), a, id, step, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// AdvanceWorkflow godoc
// @Summary      Move a manual workflow to its next step
// @Tags         Workflow
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  TaskResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/workflow/advance [post]
func (h *TaskHandler) AdvanceWorkflow(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	t, err := h.svc.AdvanceWorkflow(c.Request.Context(), a, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// AddStepDocuments godoc
// @Summary      Attach documents to a workflow step
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Task ID"
// @Param        step     path      int                     true  "Step number"
// @Param        request  body      service.DocumentsInput  true  "Documents"
// @Success      201      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/workflow/steps/{step}/documents [post]
func (h *TaskHandler) AddStepDocuments(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	step, ok := intParam(c, "step")
	if !ok {
		return
	}

	var req service.DocumentsInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.AddStepDocuments(c.Request.Context(), a, id, step, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusCreated, t)
}
