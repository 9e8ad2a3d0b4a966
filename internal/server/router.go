package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shortener-core/internal/handler"
	"shortener-core/pkg/monitor"
	"shortener-core/pkg/validator"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h *handler.ShortenerHandler) *gin.Engine {
	// 0. 初始化监控指标与校验规则
	monitor.Init()
	validator.Init()

	// 1. 创建 Engine (Logger, Recovery)
	r := gin.Default()
	r.Use(monitor.PrometheusMiddleware())

	// 2. 基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 3. 短链跳转
	r.GET("/r/:key", h.Redirect)

	// 4. API
	api := r.Group("/api/v1")
	{
		api.GET("/resolve/:key", h.Resolve)
		api.GET("/lookup", h.Lookup)
		api.POST("/register", h.Register)
		api.GET("/registration", h.Registration)
		api.GET("/pending", h.Pending)
	}

	return r
}
