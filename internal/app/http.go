package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/api"
	"github.com/taoyao-code/marine-sim/internal/api/middleware"
	"github.com/taoyao-code/marine-sim/internal/broadcast"
	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/health"
	"github.com/taoyao-code/marine-sim/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器
func NewHTTPServer(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool, logger *zap.Logger) *httpserver.Server {
	return httpserver.New(cfg, metricsPath, metricsHandler, readyFn, logger)
}

// RegisterRoutes 挂载健康检查、只读 API 与 WebSocket 端点
func RegisterRoutes(srv *httpserver.Server, cfg *cfgpkg.Config, agg *health.Aggregator, h *api.StatusHandler, hub *broadcast.Hub, logger *zap.Logger) {
	srv.Register(func(r *gin.Engine) {
		health.RegisterHTTPRoutes(r, agg)
		api.RegisterRoutes(r, h, middleware.AuthConfig{
			APIKeys: cfg.HTTP.Auth.APIKeys,
			Enabled: cfg.HTTP.Auth.Enabled,
		}, logger)
	})
	if cfg.WebSocket.Enable {
		path := cfg.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		srv.Handle(path, broadcast.NewWebSocketHandler(hub, cfg.WebSocket, logger))
		logger.Info("websocket endpoint registered", zap.String("path", path))
	}
}
