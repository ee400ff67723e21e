package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/service"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List GET /notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), GetActor(c), c.Query("unread") == "true")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// MarkRead POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// MarkAllRead POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(c.Request.Context(), GetActor(c)); err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, nil)
}
