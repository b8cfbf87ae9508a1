package app

import (
	"appcc_edu_backend/docs"
	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/internal/middleware"
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/me", c.auth.Me)
	group.GET("/me/courses", c.enrollment.MyCourses)

	// 课程目录
	group.GET("/courses", c.course.ListCourses)
	group.GET("/courses/:id", c.course.GetCourse)
	group.GET("/courses/:id/lessons", c.course.ListLessons)
	group.GET("/courses/:id/quizzes", c.course.ListQuizzes)
	group.POST("/courses/:id/enroll", c.enrollment.Enroll)

	// 选课进度
	group.GET("/user-courses/:id", c.enrollment.GetEnrollment)
	group.PUT("/user-courses/:id/progress", c.enrollment.UpdateProgress)
	group.POST("/user-courses/:id/recompute", c.enrollment.Recompute)
	group.GET("/user-courses/:id/certificate", c.enrollment.Certificate)

	// 测验与答题
	group.GET("/quizzes/:id", c.course.GetQuiz)
	group.POST("/quizzes/:id/attempts", c.attempt.StartAttempt)
	group.GET("/quizzes/:id/attempts", c.attempt.ListAttempts)
	group.POST("/attempts/:id/answers", c.attempt.SubmitAnswer)
	group.POST("/attempts/:id/complete", c.attempt.CompleteAttempt)
	group.GET("/attempts/:id/results", c.attempt.GetResults)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.GET("/users", c.auth.ListUsers)
		admin.POST("/users", c.auth.CreateUser)

		admin.POST("/courses", c.course.CreateCourse)
		admin.PUT("/courses/:id", c.course.UpdateCourse)
		admin.DELETE("/courses/:id", c.course.DeleteCourse)

		admin.POST("/courses/:id/lessons", c.course.CreateLesson)
		admin.PUT("/lessons/:id", c.course.UpdateLesson)
		admin.DELETE("/lessons/:id", c.course.DeleteLesson)

		admin.POST("/courses/:id/quizzes", c.course.CreateQuiz)
		admin.PUT("/quizzes/:id", c.course.UpdateQuiz)
		admin.DELETE("/quizzes/:id", c.course.DeleteQuiz)

		admin.POST("/quizzes/:id/questions", c.course.CreateQuestion)
		admin.DELETE("/questions/:id", c.course.DeleteQuestion)
		admin.POST("/questions/:id/options", c.course.AddOption)
	}
}
