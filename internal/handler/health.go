package handler

import (
	"github.com/gin-gonic/gin"

	"shortener-core/internal/handler/response"
)

// HealthCheck 健康检查
func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"version": "1.0.0",
		"service": "shortener-server",
	})
}
