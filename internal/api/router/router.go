package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/api/handler"
	"github.com/MDx-Vision/nicehr-sub005/internal/api/middleware"
	"github.com/MDx-Vision/nicehr-sub005/pkg/jwt"
	"github.com/MDx-Vision/nicehr-sub005/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1（全部路由要求认证，Token 由外部平台签发）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		scheduling := v1.Group("/scheduling")
		{
			// 推荐与解释
			scheduling.GET("/recommendations", h.Scheduling.Recommendations)
			scheduling.GET("/recommendations/explain", h.Scheduling.Explain)

			// 批次指派（写路径需 scheduler/admin）
			canSchedule := middleware.RoleAuth("admin", "scheduler")
			scheduling.POST("/auto-assign/validate", canSchedule, h.Scheduling.Validate)
			scheduling.POST("/auto-assign",
				canSchedule,
				middleware.RateLimit(rdb, 10, time.Minute),
				h.Scheduling.AutoAssign)
			scheduling.POST("/auto-assign/confirm", canSchedule, h.Scheduling.Confirm)
			scheduling.POST("/auto-assign/undo", canSchedule, h.Scheduling.Undo)
			scheduling.POST("/auto-assign/cancel", canSchedule, h.Scheduling.Cancel)
			scheduling.GET("/batches/:id", h.Scheduling.GetBatch)
			scheduling.POST("/override", middleware.RoleAuth("admin"), h.Scheduling.Override)

			// 资格校验子模块
			scheduling.GET("/eligibility/:id", h.Eligibility.Check)
			scheduling.GET("/eligibility/:id/certifications", h.Eligibility.Certifications)
			scheduling.GET("/eligibility/:id/licenses", h.Eligibility.Licenses)
			scheduling.GET("/eligibility/:id/background", h.Eligibility.Background)
			scheduling.GET("/eligibility/:id/compliance", h.Eligibility.Compliance)
			scheduling.POST("/eligibility/:id/invalidate", canSchedule, h.Eligibility.Invalidate)

			// 配置子模块（写路径仅 admin）
			scheduling.GET("/config", h.Config.GetActive)
			scheduling.POST("/config", middleware.RoleAuth("admin"), h.Config.Save)
			scheduling.POST("/config/rollback", middleware.RoleAuth("admin"), h.Config.Rollback)
			scheduling.GET("/config/history", h.Config.History)

			// 审计与导出
			scheduling.GET("/audit", canSchedule, h.Audit.List)
			scheduling.GET("/export/assignments", canSchedule, h.Export.Assignments)
		}
	}

	return r
}
