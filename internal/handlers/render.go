package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/internal/apperrors"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

// renderError 把领域错误映射到 HTTP 状态码
func renderError(c *gin.Context, err error) {
	var pf *apperrors.PartialFailureError
	var ve *apperrors.ValidationError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotLeader),
		errors.Is(err, apperrors.ErrNotReceiver):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAlreadyResponded),
		errors.Is(err, apperrors.ErrAlreadyMember),
		errors.Is(err, apperrors.ErrGroupFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotEligible):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &pf):
		// 部分失败：已落终态的步骤列表随错误返回，客户端可重放整个流程
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     err.Error(),
			"saga":      pf.Saga,
			"step":      pf.Step,
			"completed": pf.Completed,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// currentUID 取认证中间件写入的用户标识
func currentUID(c *gin.Context) (string, bool) {
	v, exists := c.Get("uid")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return v.(string), true
}
