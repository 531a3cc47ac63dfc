package api

import (
	"net/http"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar 是各模块HTTP处理器的共同接口
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// ErrStoreUnavailable 在文档存储不可用时返回给客户端
var ErrStoreUnavailable = apperr.New(apperr.CodeUnavailable, "服务暂时不可用，请稍后再试")

// StoreHealthMiddleware 在文档存储被标记为不可用时拒绝请求
func StoreHealthMiddleware(status *database.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !status.IsHealthy() {
			apperr.Respond(c, ErrStoreUnavailable)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, status *database.Status, modules ...RouteRegistrar) {
	api := router.Group("/api")

	// 健康检查不受存储状态影响
	api.GET("/health", func(c *gin.Context) {
		if status.IsHealthy() {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
	})

	guarded := api.Group("", StoreHealthMiddleware(status))
	for _, m := range modules {
		m.RegisterRoutes(guarded)
	}
}
