package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/api/middleware"
)

// RegisterRoutes 注册 /api/v1 只读路由
func RegisterRoutes(r gin.IRouter, h *StatusHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v1 := r.Group("/api/v1")
	if authCfg.Enabled {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	}

	v1.GET("/status", h.Status)
	v1.GET("/sensors", h.Sensors)
	v1.GET("/clients", h.Clients)
	v1.POST("/validate", h.Validate)

	logger.Info("api routes registered", zap.Int("endpoints", 4))
}
