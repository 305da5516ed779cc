package app

import (
	"step_tracker_backend/docs"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/middleware"
	"step_tracker_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerParticipantRoutes(authGroup, c)

		// 3. 管理员相关接口，每个请求都重新读取管理员标志
		admin := authGroup.Group("/admin")
		admin.Use(middleware.AdminMiddleware(repos.user))
		a.registerAdminRoutes(admin, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerParticipantRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.GetProfile)

	group.POST("/submissions", c.submission.Submit)
	group.GET("/submissions", c.submission.List)
	group.GET("/submissions/export.csv", c.submission.ExportCSV)
	group.GET("/submissions/export.zip", c.submission.ExportZIP)

	group.GET("/progress", c.progress.GetProgress)
	group.GET("/leaderboard", c.leaderboard.GetLeaderboard)
}

func (a *App) registerAdminRoutes(admin *gin.RouterGroup, c *controllers) {
	admin.GET("/queue", c.admin.GetQueue)
	admin.GET("/queue/export.csv", c.admin.ExportQueueCSV)
	admin.GET("/evidence.zip", c.admin.ExportEvidenceZIP)

	admin.GET("/submissions/:id/image", c.admin.GetImage)
	admin.POST("/submissions/:id/verify", c.admin.Verify)
	admin.POST("/submissions/:id/delete", c.admin.RequestDelete)
	admin.POST("/reset", c.admin.RequestReset)

	admin.POST("/confirmations/:token", c.admin.Confirm)
	admin.DELETE("/confirmations/:token", c.admin.Cancel)
}
