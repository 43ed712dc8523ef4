package main

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/config"
	"github.com/squadup/squadup/internal/consumer"
	"github.com/squadup/squadup/internal/docstore"
	"github.com/squadup/squadup/internal/handlers"
	"github.com/squadup/squadup/internal/push"
	"github.com/squadup/squadup/internal/repositories"
	"github.com/squadup/squadup/internal/routers"
	"github.com/squadup/squadup/internal/saga"
	"github.com/squadup/squadup/internal/services"
	"github.com/squadup/squadup/internal/state"
	"github.com/squadup/squadup/internal/storage"
	"github.com/squadup/squadup/internal/utils"
	"github.com/squadup/squadup/internal/ws"
	logger "github.com/squadup/squadup/middleware/log"
	pkgutils "github.com/squadup/squadup/pkg/utils"
	"github.com/squadup/squadup/utils/ratelimit"
	"github.com/squadup/squadup/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	// 初始化结构化日志
	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLog.Close()

	// JWT 密钥
	pkgutils.SetJWTSecret(cfg.JWT.Secret)

	// 初始化全局 Worker Pool (协程池)
	// 用于异步处理请求，防止高并发下 Goroutine 暴涨
	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start()
	defer pool.Stop()

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	pg, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		log.Fatalf("postgres 初始化失败: %v", err)
	}

	// 初始化 Redis
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		log.Fatalf("redis 初始化失败: %v", err)
	}

	// 文档库（实时数据 + 订阅）
	store := docstore.New(redisClient)
	defer store.Close()

	// 雪花 ID（聊天消息）
	ids, err := snowflake.NewGenerator(snowflake.Config{DatacenterID: 1, WorkerID: 1})
	if err != nil {
		log.Fatalf("雪花 ID 生成器初始化失败: %v", err)
	}

	// 初始化仓储层
	userRepo := repositories.NewUserRepository(pg)
	groupRepo := repositories.NewGroupRepository(store)
	profileRepo := repositories.NewProfileRepository(store)
	invitationRepo := repositories.NewInvitationRepository(store)
	partyRepo := repositories.NewPartyRepository(store)
	chatRepo := repositories.NewChatRepository(store, ids)
	notificationRepo := repositories.NewNotificationRepository(store)

	// 初始化 Kafka Producer（推送）
	var pusher push.Sender = push.Nop{}
	kafkaProducer, err := push.NewProducer(&cfg.Kafka)
	if err != nil {
		log.Printf("Kafka 生产者初始化失败: %v。推送降级为空实现。", err)
	} else {
		pusher = kafkaProducer
		defer kafkaProducer.Close()
	}

	// 初始化服务层
	sagas := saga.NewRunner(appLog.Logger)
	membershipService := services.NewMembershipService(
		groupRepo, profileRepo, chatRepo, partyRepo, notificationRepo, invitationRepo,
		sagas, pusher, pool, appLog.Logger,
	)
	invitationCoordinator := services.NewInvitationCoordinator(
		invitationRepo, groupRepo, profileRepo, chatRepo, partyRepo,
		sagas, pusher, appLog.Logger, cfg.Session.PartyInviteTimeout,
	)
	notificationDispatcher := services.NewNotificationDispatcher(notificationRepo, profileRepo, appLog.Logger)
	authService := services.NewAuthService(userRepo, profileRepo)

	// 会话级群组状态
	sessions := state.NewManager(groupRepo, appLog.Logger, cfg.Session.DepartureTokenTTL)
	defer sessions.CloseAll()

	// 初始化 WebSocket Hub
	hub := ws.NewHub()
	go hub.Run()

	// 初始化 Kafka Consumer (如果 Kafka 可用)
	if kafkaProducer != nil {
		pushConsumer := consumer.NewPushConsumer(hub)
		consumer.StartConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PushTopic, pushConsumer)
	}

	// 限流器（redis 令牌桶，fail-open 可配）
	limiter := ratelimit.NewTokenBucketLimiter(redisClient, appLog.Logger, cfg.RateLimit.FailOpen)

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(authService)
	groupHandler := handlers.NewGroupHandler(membershipService, groupRepo, sessions)
	invitationHandler := handlers.NewInvitationHandler(invitationCoordinator)
	notificationHandler := handlers.NewNotificationHandler(notificationDispatcher)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(appLog))

	// 设置路由
	routers.SetupRoutes(r,
		cfg,
		authHandler,
		groupHandler,
		invitationHandler,
		notificationHandler,
		hub,
		sessions,
		invitationCoordinator,
		limiter,
		pool,
	)

	// 启动服务器
	log.Printf("正在启动服务器，监听端口 :%d\n", cfg.Server.Port)
	if err := r.Run(":" + strconv.FormatInt(int64(cfg.Server.Port), 10)); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}
