package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/repositories"
	"github.com/squadup/squadup/internal/services"
	"github.com/squadup/squadup/internal/state"
)

// GroupHandler 队伍处理器
type GroupHandler struct {
	membership *services.MembershipService
	groups     *repositories.GroupRepository
	sessions   *state.Manager
}

// NewGroupHandler 创建队伍处理器实例
func NewGroupHandler(membership *services.MembershipService, groups *repositories.GroupRepository, sessions *state.Manager) *GroupHandler {
	return &GroupHandler{
		membership: membership,
		groups:     groups,
		sessions:   sessions,
	}
}

// CreateGroup 建队
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var req services.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("CreateGroup: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	group, err := h.membership.CreateGroup(c.Request.Context(), uid, &req)
	if err != nil {
		log.Printf("CreateGroup: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, group)
}

// GetGroup 查询队伍
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	ok(c, group)
}

// Apply 报名加入队伍
func (h *GroupHandler) Apply(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var req services.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Apply: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if err := h.membership.Apply(c.Request.Context(), c.Param("id"), uid, &req); err != nil {
		log.Printf("Apply: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, nil)
}

// InviteApplicant 队长邀请报名者入队
func (h *GroupHandler) InviteApplicant(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	var applicant models.Applicant
	if err := c.ShouldBindJSON(&applicant); err != nil {
		log.Printf("InviteApplicant: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	inv, err := h.membership.InviteApplicant(c.Request.Context(), c.Param("id"), uid, applicant)
	if err != nil {
		log.Printf("InviteApplicant: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, inv)
}

// Leave 主动退队
func (h *GroupHandler) Leave(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	// 先在本人会话上打自离标记，订阅流才不会把本次退出当成被移除
	if store := h.sessions.Peek(uid); store != nil {
		store.MarkSelfDeparture()
	}

	if err := h.membership.Leave(c.Request.Context(), c.Param("id"), uid); err != nil {
		log.Printf("Leave: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, nil)
}

// RemoveMember 队长移除成员
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	if err := h.membership.RemoveMember(c.Request.Context(), c.Param("id"), uid, c.Param("uid")); err != nil {
		log.Printf("RemoveMember: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, nil)
}

// Disband 队长解散队伍
func (h *GroupHandler) Disband(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	if err := h.membership.Disband(c.Request.Context(), c.Param("id"), uid); err != nil {
		log.Printf("Disband: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, nil)
}

// RequestDelistToggle 申请切换上下架（第一步，返回确认 token）
func (h *GroupHandler) RequestDelistToggle(c *gin.Context) {
	uid, exists := currentUID(c)
	if !exists {
		return
	}

	token, err := h.membership.RequestDelistToggle(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		log.Printf("RequestDelistToggle: service error for uid %s: %v", uid, err)
		renderError(c, err)
		return
	}

	ok(c, gin.H{"confirm_token": token})
}

// ConfirmDelistToggle 确认切换上下架（第二步）
func (h *GroupHandler) ConfirmDelistToggle(c *gin.Context) {
	var req struct {
		ConfirmToken string `json:"confirm_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("ConfirmDelistToggle: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	group, err := h.membership.ConfirmDelistToggle(c.Request.Context(), req.ConfirmToken)
	if err != nil {
		log.Printf("ConfirmDelistToggle: service error: %v", err)
		renderError(c, err)
		return
	}

	ok(c, group)
}
