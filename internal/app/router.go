package app

import (
	"tutor_backend/docs"
	"tutor_backend/internal/middleware"
	"tutor_backend/internal/model"
	"tutor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(s.identity))
	{
		a.registerTutorRoutes(authGroup, c)
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, s)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		public.GET("/learning-paths", c.learningPath.ListPaths)
		public.GET("/learning-paths/:pathId", c.learningPath.GetPath)

		public.GET("/achievements", c.achievement.ListCatalog)
	}
}

func (a *App) registerTutorRoutes(api *gin.RouterGroup, c *controllers) {
	tutor := api.Group("/tutor")
	{
		tutor.GET("/subjects", c.tutor.ListSubjects)

		tutor.POST("/sessions", c.tutor.CreateSession)
		tutor.GET("/sessions", c.tutor.ListSessions)
		tutor.DELETE("/sessions/:id", c.tutor.EndSession)
		tutor.GET("/sessions/:id/messages", c.tutor.ListMessages)
		tutor.POST("/sessions/:id/messages", c.tutor.SendMessage)
		tutor.POST("/sessions/:id/messages/stream", c.tutor.StreamMessage)
		tutor.GET("/sessions/:id/ws", c.tutor.Socket)
		tutor.POST("/sessions/:id/duration", c.tutor.UpdateDuration)

		tutor.GET("/progress", c.tutor.GetProgress)
		tutor.GET("/progress/:subject", c.tutor.GetSubjectProgress)
	}
}

func (a *App) registerStudentRoutes(api *gin.RouterGroup, c *controllers) {
	me := api.Group("/users/me")
	{
		// 学习路径
		me.GET("/learning-paths/recommended", c.learningPath.Recommend)
		me.GET("/learning-paths/progress", c.learningPath.GetAllProgress)
		me.POST("/learning-paths/:pathId/enroll", c.learningPath.Enroll)
		me.GET("/learning-paths/:pathId/progress", c.learningPath.GetPathProgress)
		me.PATCH("/learning-paths/:pathId/modules/:moduleId/progress", c.learningPath.UpdateModuleProgress)

		// 学习目标
		me.GET("/goals", c.goal.ListGoals)
		me.POST("/goals", c.goal.CreateGoal)
		me.PATCH("/goals/:id", c.goal.UpdateGoal)
		me.DELETE("/goals/:id", c.goal.DeleteGoal)
		me.POST("/goals/:id/complete", c.goal.CompleteGoal)
		me.PATCH("/goals/:id/status", c.goal.ChangeStatus)
		me.PATCH("/goals/:id/progress", c.goal.UpdateProgress)

		// 成就
		me.GET("/achievements", c.achievement.GetUserAchievements)
		me.GET("/achievements/recent", c.achievement.GetRecent)
		me.POST("/achievements/:id/notified", c.achievement.MarkNotified)

		// 学习统计
		me.GET("/stats", c.stats.GetStats)
		me.GET("/dashboard", c.stats.GetDashboard)
		me.GET("/sessions/recent", c.stats.GetRecentSessions)
		me.GET("/analytics", c.stats.GetAnalytics)
		me.GET("/charts/:chartType", c.stats.GetChart)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, s *services) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(s.identity), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/subjects", c.admin.ListSubjects)
		admin.PATCH("/subjects/:id", c.admin.UpdateSubject)
	}
}
