package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/config"
	"github.com/squadup/squadup/internal/handlers"
	"github.com/squadup/squadup/internal/middlewares"
	"github.com/squadup/squadup/internal/services"
	"github.com/squadup/squadup/internal/state"
	"github.com/squadup/squadup/internal/utils"
	"github.com/squadup/squadup/internal/ws"
	"github.com/squadup/squadup/utils/ratelimit"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	authHandler *handlers.AuthHandler,
	groupHandler *handlers.GroupHandler,
	invitationHandler *handlers.InvitationHandler,
	notificationHandler *handlers.NotificationHandler,
	hub *ws.Hub,
	sessions *state.Manager,
	coordinator *services.InvitationCoordinator,
	limiter ratelimit.Limiter,
	pool *utils.WorkerPool,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// WebSocket 路由 (必须在 AsyncMiddleware 之前注册，避免握手请求被放入 Worker Pool)
	r.GET("/ws", middlewares.AuthMiddleware(), func(c *gin.Context) {
		ws.ServeWs(hub, sessions, coordinator, c)
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	// 异步处理中间件：请求进 Worker Pool 排队执行
	r.Use(middlewares.AsyncMiddleware(pool))

	rlConfig := &ratelimit.RateLimitConfig{
		RegisterPerMinute: cfg.RateLimit.RegisterPerMinute,
		LoginPerMinute:    cfg.RateLimit.LoginPerMinute,
		ApplyPerMinute:    cfg.RateLimit.ApplyPerMinute,
		APIPerMinute:      cfg.RateLimit.APIPerMinute,
	}

	RegisterAuthRoutes(r, authHandler, limiter, rlConfig)
	RegisterGroupRoutes(r, groupHandler, limiter, rlConfig)
	RegisterInvitationRoutes(r, invitationHandler, limiter, rlConfig)
	RegisterNotificationRoutes(r, notificationHandler, limiter, rlConfig)
}

// RegisterAuthRoutes 认证接口
func RegisterAuthRoutes(r *gin.Engine, h *handlers.AuthHandler, limiter ratelimit.Limiter, rlConfig *ratelimit.RateLimitConfig) {
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/register", middlewares.RateLimitMiddleware(limiter, "register", rlConfig), h.Register) // 注册
		authGroup.POST("/login", middlewares.RateLimitMiddleware(limiter, "login", rlConfig), h.Login)          // 登录
	}
}

// RegisterGroupRoutes 队伍接口
func RegisterGroupRoutes(r *gin.Engine, h *handlers.GroupHandler, limiter ratelimit.Limiter, rlConfig *ratelimit.RateLimitConfig) {
	groupGroup := r.Group("/api/v1/groups")
	groupGroup.Use(middlewares.AuthMiddleware())
	groupGroup.Use(middlewares.RateLimitMiddleware(limiter, "api", rlConfig))
	{
		groupGroup.POST("", h.CreateGroup)                                                                         // 建队
		groupGroup.GET("/:id", h.GetGroup)                                                                         // 查询队伍
		groupGroup.POST("/:id/applications", middlewares.RateLimitMiddleware(limiter, "apply", rlConfig), h.Apply) // 报名
		groupGroup.POST("/:id/invitations", h.InviteApplicant)                                                     // 队长邀请报名者

		// 成员管理
		groupGroup.POST("/:id/leave", h.Leave)                 // 主动退队
		groupGroup.DELETE("/:id/members/:uid", h.RemoveMember) // 队长移除成员
		groupGroup.POST("/:id/disband", h.Disband)             // 解散队伍

		// 上下架（两步确认）
		groupGroup.POST("/:id/delist-request", h.RequestDelistToggle)
		groupGroup.POST("/:id/delist-confirm", h.ConfirmDelistToggle)
	}
}

// RegisterInvitationRoutes 邀请接口
func RegisterInvitationRoutes(r *gin.Engine, h *handlers.InvitationHandler, limiter ratelimit.Limiter, rlConfig *ratelimit.RateLimitConfig) {
	invGroup := r.Group("/api/v1/invitations")
	invGroup.Use(middlewares.AuthMiddleware())
	invGroup.Use(middlewares.RateLimitMiddleware(limiter, "api", rlConfig))
	{
		invGroup.GET("", h.ListPending)            // 按类型列出待处理邀请
		invGroup.POST("/party", h.SendParty)       // 发搭子邀请
		invGroup.POST("/friend", h.SendFriend)     // 发好友请求
		invGroup.POST("/:id/respond", h.Respond)   // 接受/拒绝
		invGroup.POST("/:id/retry", h.RetryAccept) // 重放接受流程
	}
}

// RegisterNotificationRoutes 通知接口
func RegisterNotificationRoutes(r *gin.Engine, h *handlers.NotificationHandler, limiter ratelimit.Limiter, rlConfig *ratelimit.RateLimitConfig) {
	notifGroup := r.Group("/api/v1/notifications")
	notifGroup.Use(middlewares.AuthMiddleware())
	notifGroup.Use(middlewares.RateLimitMiddleware(limiter, "api", rlConfig))
	{
		notifGroup.GET("/prompt", h.Prompt)    // 当前提示
		notifGroup.POST("/dismiss", h.Dismiss) // 关闭提示
	}
}
