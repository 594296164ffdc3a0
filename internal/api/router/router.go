package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nari0122/Mathlearningdashboard-sub000/config"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/api/handler"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/api/middleware"
	"github.com/Nari0122/Mathlearningdashboard-sub000/pkg/jwt"
	"github.com/Nari0122/Mathlearningdashboard-sub000/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(rdb, 120, time.Minute))

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
	authorized.Use(middleware.RoleAuth("admin", "teacher"))
	{
		// 日程模块：所有路由挂在学生之下
		students := authorized.Group("/students/:studentId")
		{
			schedules := students.Group("/schedules")
			{
				schedules.GET("", h.Schedule.List)
				schedules.POST("", h.Schedule.Create)
				schedules.GET("/change-logs", h.Schedule.ListChangeLogs)
				schedules.GET("/export/excel", h.Export.ExportMonthExcel)
				schedules.GET("/export/ics", h.Export.ICSFeed)
				schedules.GET("/:scheduleId", h.Schedule.Get)
				schedules.PUT("/:scheduleId", h.Schedule.Update)
				schedules.DELETE("/:scheduleId", h.Schedule.Delete)
				schedules.POST("/:scheduleId/change", h.Schedule.PostponeOrChange)
			}
		}
	}

	return r
}
