package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskflow/internal/model"
)

// Inbox lists and acknowledges the notifications of an employee.
type Inbox interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID int64, id uuid.UUID) error
}

type InboxHandler struct {
	inbox Inbox
}

func NewInboxHandler(inbox Inbox) *InboxHandler {
	return &InboxHandler{inbox: inbox}
}

type NotificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// List godoc
// @Summary      List my notifications
// @Tags         Notifications
// @Produce      json
// @Success      200  {array}   NotificationResponse
// @Failure      401  {object}  map[string]string
// @Security     BearerAuth
// @Router       /notifications [get]
func (h *InboxHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	items, err := h.inbox.ListByUser(c.Request.Context(), a.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	resp := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, NotificationResponse{
			ID:        n.ID.String(),
			Title:     n.Title,
			Content:   n.Content,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead godoc
// @Summary      Mark a notification as read
// @Tags         Notifications
// @Param        id   path  string  true  "Notification ID"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /notifications/{id}/read [post]
func (h *InboxHandler) MarkRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID format"})
		return
	}

	if err := h.inbox.MarkRead(c.Request.Context(), a.ID, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	c.Status(http.StatusNoContent)
}
