package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/repository"
)

// NotificationHandler serves the caller's own notifications. Every
// operation is scoped to the authenticated user; there is no cross-user
// access.
type NotificationHandler struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func NewNotificationHandler(notifications repository.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func (h *NotificationHandler) List(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	items, err := h.notifications.ListByUser(c.Request.Context(), middleware.SessionFrom(c), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	count, err := h.notifications.CountUnread(c.Request.Context(), middleware.SessionFrom(c), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.SessionFrom(c), actor.UserID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := h.notifications.MarkAllRead(c.Request.Context(), middleware.SessionFrom(c), actor.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all marked read"})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	if err := h.notifications.Delete(c.Request.Context(), middleware.SessionFrom(c), actor.UserID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := h.notifications.DeleteAll(c.Request.Context(), middleware.SessionFrom(c), actor.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notifications deleted"})
}
