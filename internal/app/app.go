package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/controller"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/service"
	"step_tracker_backend/pkg/configwatcher"
	"step_tracker_backend/pkg/database"
	"step_tracker_backend/pkg/logger"
	"step_tracker_backend/pkg/monitoring"
	"step_tracker_backend/pkg/security"
	"step_tracker_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config     *config.Config
	ConfigFile string
	Router     *gin.Engine
	DB         *gorm.DB
	Redis      *redis.Client
	Rules      *service.RuleSet

	tracer          *sdktrace.TracerProvider
	ctx             context.Context
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	submission *repository.SubmissionRepository
	session    repository.SessionStore
}

type services struct {
	auth         *service.AuthService
	user         *service.UserService
	storage      service.StorageProvider
	submission   *service.SubmissionService
	progress     *service.ProgressService
	verification *service.VerificationService
	leaderboard  *service.LeaderboardService
	export       *service.ExportService
}

type controllers struct {
	auth        *controller.AuthController
	submission  *controller.SubmissionController
	progress    *controller.ProgressController
	leaderboard *controller.LeaderboardController
	admin       *controller.AdminController
	health      *controller.HealthController
}

// RegisterConfigCallback 配置文件变更后依次调用
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) reloadConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	var sessions repository.SessionStore
	if rdb != nil {
		sessions = repository.NewRedisSessionStore(rdb)
	} else {
		sessions = repository.NewMemorySessionStore()
	}

	return &repositories{
		user:       repository.NewUserRepository(db),
		submission: repository.NewSubmissionRepository(db),
		session:    sessions,
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, storage service.StorageProvider) *services {
	submission := service.NewSubmissionService(repos.submission, storage, repos.session, a.Rules)
	verification := service.NewVerificationService(repos.submission, repos.user, storage, repos.session, a.Rules)

	return &services{
		auth:         service.NewAuthService(repos.user, cfg),
		user:         service.NewUserService(repos.user),
		storage:      storage,
		submission:   submission,
		progress:     service.NewProgressService(repos.submission, a.Rules),
		verification: verification,
		leaderboard:  service.NewLeaderboardService(repos.submission, a.Rules),
		export:       service.NewExportService(submission, verification, storage),
	}
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth, s.user),
		submission:  controller.NewSubmissionController(s.submission, s.export, a.Rules),
		progress:    controller.NewProgressController(s.progress),
		leaderboard: controller.NewLeaderboardController(s.leaderboard),
		admin:       controller.NewAdminController(s.verification, s.export),
		health:      controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 监听配置文件，活动规则热更新
func (a *App) startBackgroundTasks() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		if err := a.Rules.Update(cfg.Campaign); err != nil {
			logger.Log.Error("Rejected campaign rules from reloaded config", zap.Error(err))
			return
		}
		logger.Log.Info("Campaign rules reloaded",
			zap.Duration("cooldown", cfg.Campaign.Cooldown),
			zap.Int("review_threshold", cfg.Campaign.ReviewThreshold),
			zap.Int("evidence_exempt_below", cfg.Campaign.EvidenceExemptBelow),
		)
	})

	if a.ConfigFile == "" {
		return
	}
	go func() {
		if err := configwatcher.WatchConfig(a.ctx, a.ConfigFile, a.reloadConfig); err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

// NewApp 按配置装配各层，configDir 为配置文件所在目录
func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		Rules:  service.NewRuleSet(cfg.Campaign),
		ctx:    ctx,
		cancel: cancel,
	}
	if configDir != "" {
		app.ConfigFile = filepath.Join(configDir, "config.yaml")
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	} else {
		logger.Log.Info("Redis disabled, using in-process session store")
	}

	storage, err := service.NewStorageProvider(ctx, &cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to initialize storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}

	repos := app.initRepositories(db, app.Redis)
	services := app.initServices(repos, cfg, storage)
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

// Close 停止后台任务并释放连接
func (a *App) Close() {
	a.cancel()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Error("Failed to close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
