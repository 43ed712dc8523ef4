package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/services"
)

// InvitationHandler 邀请处理器
type InvitationHandler struct {
	coordinator *services.InvitationCoordinator
}

// NewInvitationHandler 创建邀请处理器实例
func NewInvitationHandler(coordinator *services.InvitationCoordinator) *InvitationHandler {
	return &InvitationHandler{
		coordinator: coordinator,
	}
}

// ListPending 按类型列出当前用户的待处理邀请
func (h *InvitationHandler) ListPending(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	kind := c.DefaultQuery("kind", models.InviteKindGroup)
	switch kind {
	case models.InviteKindGroup, models.InviteKindParty, models.InviteKindFriend:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown invitation kind"})
		return
	}

	pending, err := h.coordinator.Pending(c.Request.Context(), uid, kind)
	if err != nil {
		log.Printf("ListPending: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, pending)
}

// SendParty 发出搭子邀请
func (h *InvitationHandler) SendParty(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var req struct {
		ReceiverUID string `json:"receiver_uid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.coordinator.SendPartyInvitation(c.Request.Context(), uid, req.ReceiverUID)
	if err != nil {
		log.Printf("SendParty: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, inv)
}

// SendFriend 发出好友请求
func (h *InvitationHandler) SendFriend(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var req struct {
		ReceiverUID string `json:"receiver_uid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.coordinator.SendFriendRequest(c.Request.Context(), uid, req.ReceiverUID)
	if err != nil {
		log.Printf("SendFriend: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, inv)
}

// Respond 处理一条邀请（按类型路由到对应流程）
func (h *InvitationHandler) Respond(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var req struct {
		Kind   string `json:"kind" binding:"required"`
		Accept bool   `json:"accept"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	var err error
	switch req.Kind {
	case models.InviteKindGroup:
		err = h.coordinator.RespondToGroupInvitation(c.Request.Context(), id, uid, req.Accept)
	case models.InviteKindParty:
		err = h.coordinator.RespondToPartyInvitation(c.Request.Context(), id, uid, req.Accept)
	case models.InviteKindFriend:
		err = h.coordinator.RespondToFriendRequest(c.Request.Context(), id, uid, req.Accept)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown invitation kind"})
		return
	}
	if err != nil {
		log.Printf("Respond: service error for invitation %s: %v", id, err)
		renderError(c, err)
		return
	}

	ok(c, nil)
}

// RetryAccept 重放一次接受流程（部分失败的恢复路径）
func (h *InvitationHandler) RetryAccept(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	id := c.Param("id")
	if err := h.coordinator.RetryGroupAccept(c.Request.Context(), id, uid); err != nil {
		log.Printf("RetryAccept: service error for invitation %s: %v", id, err)
		renderError(c, err)
		return
	}

	ok(c, nil)
}
