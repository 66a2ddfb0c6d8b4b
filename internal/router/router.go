package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vitalog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API) *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiGroup := r.Group("/api")
	{
		// 消息模板与触发规则维护（供管理后台调用，鉴权由外部网关负责）
		apiGroup.GET("/prompts", api.ListPrompts)
		apiGroup.GET("/prompts/:id", api.GetPrompt)
		apiGroup.POST("/prompts", api.CreatePrompt)
		apiGroup.PUT("/prompts/:id", api.UpdatePrompt)
		apiGroup.DELETE("/prompts/:id", api.DeletePrompt)

		apiGroup.GET("/rules", api.ListRules)
		apiGroup.POST("/rules", api.CreateRule)
		apiGroup.PUT("/rules/:id", api.UpdateRule)
		apiGroup.DELETE("/rules/:id", api.DeleteRule)

		// 打卡与读数录入
		apiGroup.POST("/users/:id/metrics", api.CreateMetricEntry)
		apiGroup.POST("/users/:id/food-logs", api.CreateFoodLog)

		// 引擎入口
		apiGroup.POST("/users/:id/evaluate", api.EvaluateUser)
		apiGroup.POST("/engine/sweep", api.RunSweep)

		// 投递审计与外部通道回执
		apiGroup.GET("/users/:id/deliveries", api.ListDeliveries)
		apiGroup.PATCH("/deliveries/:reference/status", api.UpdateDeliveryStatus)
	}

	return r
}
