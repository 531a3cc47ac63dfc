package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/workout-parks-backend/api"
	"github.com/SlpAus/workout-parks-backend/internal/challenge"
	"github.com/SlpAus/workout-parks-backend/internal/leaderboard"
	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/backup"
	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/internal/platform/health"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/internal/platform/shutdown"
	"github.com/SlpAus/workout-parks-backend/internal/platform/startup"
	"github.com/SlpAus/workout-parks-backend/internal/proximity"
	"github.com/SlpAus/workout-parks-backend/internal/rating"
	"github.com/SlpAus/workout-parks-backend/internal/record"
	"github.com/SlpAus/workout-parks-backend/internal/user"
	"github.com/SlpAus/workout-parks-backend/pkg/lifecycle"
	"github.com/SlpAus/workout-parks-backend/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func fatal(format string, v ...any) {
	logger.Error(format, v...)
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("加载配置失败: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)
	logger.SetDebug(cfg.Server.Mode == gin.DebugMode)

	// 2. 连接关系数据库
	db, err := database.Open(cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		fatal("连接数据库失败: %v", err)
	}
	defer database.Close(db)

	// 3. 打开文档存储
	status := database.NewStatus()
	storeOpts := docstore.Options{MaxAttempts: cfg.Store.MaxAttempts}
	var (
		store docstore.Store
		rdb   *redis.Client
	)
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		rdb, err = database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			fatal("连接Redis失败: %v", err)
		}
		store = docstore.NewRedisStore(rdb, storeOpts)
	default:
		store = docstore.NewMemoryStore(storeOpts)
	}
	defer store.Close()

	// 4. 组装各个模块
	records := record.NewRepository(db)
	users := user.NewRepository(db)
	parks := park.NewRepository(store)
	locations := user.NewLocationStore(store)
	tracker := challenge.NewTracker(store, records)
	ratings := rating.NewAggregator(store)
	backups := backup.NewService(db, store, status)

	modules := startup.Modules{
		DB:      db,
		Records: records,
		Users:   users,
		Backup:  backups,
		Tracker: tracker,
		Ratings: ratings,
	}

	var notifier proximity.Notifier = proximity.LogNotifier{}
	if rdb != nil {
		notifier = proximity.Fanout{proximity.LogNotifier{}, proximity.NewRedisNotifier(rdb)}
	}

	signer, err := token.NewSigner()
	if err != nil {
		fatal("无法生成会话签名密钥: %v", err)
	}
	sessions := proximity.NewManager(parks, locations, signer, notifier, proximity.Options{
		ThresholdMeters: cfg.Proximity.ThresholdMeters,
		SessionTTL:      cfg.Proximity.SessionTTL,
	})

	// 5. 执行应用首次启动初始化流程
	var checker *health.Checker
	if rdb != nil {
		checker = health.NewChecker(rdb, status, startup.RebuildStore(modules))
		if err := checker.Initialize(ctx); err != nil {
			fatal("无法获取Redis初始Run ID: %v", err)
		}
	}
	if err := startup.InitializeApplication(ctx, modules); err != nil {
		fatal("应用初始化失败，无法启动: %v", err)
	}
	if checker != nil {
		logger.Info("正在执行启动后健康检查...")
		checker.PerformCheck(ctx)
	}

	// 6. 启动后台任务
	gracefulMgr := lifecycle.NewManager("graceful")
	forcefulMgr := lifecycle.NewManager("forceful")

	if err := gracefulMgr.Go("session-evictor", sessions.Run); err != nil {
		fatal("无法启动会话清理: %v", err)
	}
	if checker != nil {
		if err := forcefulMgr.Go("health-checker", checker.Run); err != nil {
			fatal("无法启动健康检查: %v", err)
		}
	}
	backupHandle, err := gracefulMgr.NewServiceHandle("backup-scheduler")
	if err != nil {
		fatal("无法注册备份调度器: %v", err)
	}
	if err := backups.StartScheduler(backupHandle, cfg.Backup.Interval); err != nil {
		fatal("%v", err)
	}

	// 7. 配置HTTP路由
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r, status,
		park.NewHandler(park.NewService(parks)),
		rating.NewHandler(ratings),
		challenge.NewHandler(tracker),
		leaderboard.NewHandler(leaderboard.NewBuilder(records, users), cfg.Leaderboard.DefaultLimit),
		user.NewHandler(user.NewService(users, parks, records), locations),
		proximity.NewHandler(sessions),
	)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	// 8. 启动服务器并等待停机信号
	go func() {
		logger.Success("服务器已准备就绪，开始监听 %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("服务器启动失败: %v", err)
		}
	}()

	shutdown.NewCoordinator(gracefulMgr, forcefulMgr, sessions, backups).ListenForSignalsAndShutdown(server)
}
