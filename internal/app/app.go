package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tutor_backend/internal/config"
	"tutor_backend/internal/controller"
	"tutor_backend/internal/llm"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/service"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/configwatcher"
	"tutor_backend/pkg/database"
	"tutor_backend/pkg/logger"
	"tutor_backend/pkg/monitoring"
	"tutor_backend/pkg/security"
	"tutor_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	limiter         *security.Limiter
	tracer          *sdktrace.TracerProvider
	configMu        sync.Mutex
	configCallbacks []func(*config.Config)

	// 停止后台任务
	cancel context.CancelFunc
}

type repositories struct {
	user         *repository.UserRepository
	subject      *repository.SubjectRepository
	chat         *repository.ChatRepository
	progress     *repository.ProgressRepository
	achievement  *repository.AchievementRepository
	learningPath *repository.LearningPathRepository
	goal         *repository.GoalRepository
}

type services struct {
	identity     *service.IdentityService
	storage      *service.StorageService
	subjects     *service.SubjectCache
	subject      *service.SubjectService
	progression  *service.ProgressionService
	achievement  *service.AchievementService
	tutor        *service.TutorService
	learningPath *service.LearningPathService
	goal         *service.GoalService
	stats        *service.StatsService
	origins      *security.OriginPolicy
}

type controllers struct {
	tutor        *controller.TutorController
	learningPath *controller.LearningPathController
	goal         *controller.GoalController
	achievement  *controller.AchievementController
	admin        *controller.AdminController
	health       *controller.HealthController
	stats        *controller.StatsController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.configMu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.Config = cfg
	a.configMu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		subject:      repository.NewSubjectRepository(db),
		chat:         repository.NewChatRepository(db),
		progress:     repository.NewProgressRepository(db),
		achievement:  repository.NewAchievementRepository(db),
		learningPath: repository.NewLearningPathRepository(db),
		goal:         repository.NewGoalRepository(db),
	}
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{origins: security.NewOriginPolicy(cfg.CORS.AllowedOrigins)}

	generator, err := llm.NewGenerator(ctx, cfg.AI)
	if err != nil {
		logger.Log.Fatal("Failed to initialize text generator", zap.Error(err))
	}

	s.identity = service.NewIdentityService(repos.user, cfg.JWT)
	s.storage = service.NewStorageService(ctx, cfg)

	s.subjects = service.NewSubjectCache(repos.subject, rdb)
	if err := s.subjects.Refresh(ctx); err != nil {
		logger.Log.Fatal("Failed to load subjects", zap.Error(err))
	}
	s.subject = service.NewSubjectService(repos.subject, s.subjects)

	s.achievement = service.NewAchievementService(repos.achievement, repos.progress, repos.learningPath)
	s.progression = service.NewProgressionService(repos.progress)
	s.progression.Evaluator = s.achievement

	s.tutor = service.NewTutorService(
		repos.chat,
		repos.subject,
		s.subjects,
		s.progression,
		s.storage,
		generator,
		cfg.Tutor.XPPerExchange,
	)

	s.learningPath = service.NewLearningPathService(repos.learningPath)
	s.learningPath.Evaluator = s.achievement
	s.goal = service.NewGoalService(repos.goal)
	s.stats = service.NewStatsService(repos.chat, repos.progress, repos.learningPath, repos.goal, s.achievement)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		tutor:        controller.NewTutorController(s.tutor, s.progression, s.origins),
		learningPath: controller.NewLearningPathController(s.learningPath),
		goal:         controller.NewGoalController(s.goal),
		achievement:  controller.NewAchievementController(s.achievement),
		admin:        controller.NewAdminController(s.subject),
		health:       controller.NewHealthController(db, rdb),
		stats:        controller.NewStatsController(s.stats),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config, s *services) {
	router.Use(security.CORS(s.origins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	a.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, window)
	a.limiter.OnReject = util.TooManyRequests
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// every 周期执行任务直到 ctx 结束
func every(ctx context.Context, interval time.Duration, task func()) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	every(ctx, a.Config.Tutor.SubjectRefresh, func() {
		if err := s.subjects.Refresh(ctx); err != nil {
			logger.Log.Error("subject refresh error", zap.Error(err))
		}
	})

	every(ctx, a.Config.Tutor.GoalSweep, func() {
		if err := s.goal.ExpireOverdue(ctx); err != nil {
			logger.Log.Error("goal expiry sweep error", zap.Error(err))
		}
	})

	every(ctx, time.Minute, a.limiter.Sweep)

	// 其他实例修改学科后通过 Redis 通知刷新
	go s.subjects.Listen(ctx)

	file := a.Config.File
	if file == "" {
		file = "configs/config.yaml"
	}
	go func() {
		if err := configwatcher.WatchConfig(ctx, file, a.applyConfig); err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 仅用于多实例间的缓存失效通知
		logger.Log.Warn("Redis unavailable, continuing without it", zap.Error(err))
		rdb = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		cancel: cancel,
	}

	if cfg.MigrateOnly {
		return app
	}

	repos := app.initRepositories(db)
	services := app.initServices(ctx, repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 配置热更新后调整日志级别并刷新学科缓存
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetLevel(newCfg.Log.Level, newCfg.Server.Mode)
		if err := services.subjects.Refresh(ctx); err != nil {
			logger.Log.Error("subject refresh after reload error", zap.Error(err))
		}
	})

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg, services)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, services)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(ctx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
