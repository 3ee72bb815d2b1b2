package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

// UpdateProgress godoc
// @Summary      Report progress
// @Tags         Tracking
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Task ID"
// @Param        request  body      service.ProgressInput  true  "Progress"
// @Success      200      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/progress [put]
func (h *TaskHandler) UpdateProgress(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req service.ProgressInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.UpdateProgress(c.Request.Context(), a, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// CompleteMilestone godoc
// @Summary      Complete a milestone
// @Tags         Tracking
// @Produce      json
// @Param        id     path      string  true  "Task ID"
// @Param        index  path      int     true  "Milestone index, zero based"
// @Success      200    {object}  TaskResponse
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/milestones/{index}/complete [post]
func (h *TaskHandler) CompleteMilestone(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	index, ok := intParam(c, "index")
	if !ok {
		return
	}

	t, err := h.svc.CompleteMilestone(c.Request.Context(), a, id, index)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// Estimate godoc
// @Summary      Project the completion date from progress history
// @Tags         Tracking
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  EstimateResponse
// @Failure      403  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/estimate [get]
func (h *TaskHandler) Estimate(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	at, err := h.svc.EstimateCompletion(c.Request.Context(), a, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EstimateResponse{EstimatedCompletion: at})
}

// AddTimeEntry godoc
// @Summary      Log hours
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Task ID"
// @Param        request  body      service.TimeEntryInput  true  "Time entry"
// @Success      201      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/time-entries [post]
func (h *TaskHandler) AddTimeEntry(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req service.TimeEntryInput
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.AddTimeEntry(c.Request.Context(), a, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusCreated, t)
}

// UpdateBilling godoc
// @Summary      Change the billing terms
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        id       path      string         true  "Task ID"
// @Param        request  body      model.Billing  true  "Billing"
// @Success      200      {object}  TaskResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/billing [put]
func (h *TaskHandler) UpdateBilling(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req model.Billing
	if !bind(c, &req) {
		return
	}

	t, err := h.svc.UpdateBillingInfo(c.Request.Context(), a, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondTask(c, http.StatusOK, t)
}

// BillingSummary godoc
// @Summary      Billing summary
// @Tags         Billing
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  ledger.Summary
// @Failure      403  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id}/billing [get]
func (h *TaskHandler) BillingSummary(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	summary, err := h.svc.BillingSummary(c.Request.Context(), a, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
