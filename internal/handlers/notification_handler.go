package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/internal/services"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	dispatcher *services.NotificationDispatcher
}

// NewNotificationHandler 创建通知处理器实例
func NewNotificationHandler(dispatcher *services.NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
	}
}

// Prompt 取当前应展示的通知提示（没有未读返回空 data）
func (h *NotificationHandler) Prompt(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	prompt, err := h.dispatcher.Prompt(c.Request.Context(), uid)
	if err != nil {
		log.Printf("Prompt: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, prompt)
}

// Dismiss 关闭提示：标记已读并返回导航落点
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dismissal, err := h.dispatcher.Dismiss(c.Request.Context(), uid, req.IDs)
	if err != nil {
		log.Printf("Dismiss: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, dismissal)
}
