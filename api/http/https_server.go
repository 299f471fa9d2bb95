package http

import (
	"net/http"

	"OpenCollab/internal/config"
	jwtMiddleware "OpenCollab/internal/middleware/jwt"
	"OpenCollab/internal/modules/notification"
	"OpenCollab/pkg/ssl"
	"OpenCollab/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewEngine 组装路由；gatherer 为 nil 或未启用 metrics 时不暴露指标端点
func NewEngine(conf *config.Config, m *notification.Module, gatherer prometheus.Gatherer) *gin.Engine {
	ge := gin.New()
	ge.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Connection-Token"}
	ge.Use(cors.New(corsConfig))
	if conf.MainConfig.TLS {
		ge.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	ge.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if conf.MetricsConfig.Enabled && gatherer != nil {
		ge.GET(conf.MetricsConfig.Path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// 浏览器原生 WebSocket 无法设置 Authorization，握手改用一次性连接凭证
	ge.GET("/wss/notification", m.Realtime.Connect)

	authed := ge.Group("/")
	authed.Use(jwtMiddleware.Auth())
	m.HTTP.Register(authed)
	return ge
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		zlog.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()))
	}
}
