// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneNovel/internal/config"
	"github.com/Corphon/SceneNovel/internal/di"
	"github.com/Corphon/SceneNovel/internal/services"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// SetupRouter builds the router from the services registered in the global
// container.
func SetupRouter() (*gin.Engine, error) {
	container := di.GetContainer()

	sessions, err := di.Resolve[*services.SessionService](container, di.ServiceSessions)
	if err != nil {
		return nil, fmt.Errorf("session service not initialized: %w", err)
	}
	ws, err := di.Resolve[*WebSocketManager](container, di.ServiceWebSocket)
	if err != nil {
		return nil, fmt.Errorf("websocket manager not initialized: %w", err)
	}
	metrics, err := di.Resolve[*utils.MetricsCollector](container, di.ServiceMetrics)
	if err != nil {
		metrics = utils.GetMetricsCollector()
	}

	handler := NewHandler(sessions, ws, metrics)
	if limiter, err := di.Resolve[*RateLimiter](container, di.ServiceRateLimiter); err == nil {
		handler.Limiter = limiter
	}
	return NewRouter(config.GetCurrentConfig(), handler), nil
}

// NewRouter wires every route onto a fresh engine.
func NewRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware(cfg))

	r.GET("/ws/sessions/:id", handler.SessionWebSocket)

	api := r.Group("/api")
	api.Use(RateLimitByIP(handler.Limiter))
	{
		api.GET("/health", handler.Health)
		api.GET("/story", handler.GetStory)
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/ws/status", handler.GetWebSocketStatus)

		sessionsGroup := api.Group("/sessions")
		{
			sessionsGroup.POST("", handler.CreateSession)
			sessionsGroup.GET("/:id", handler.GetSession)
			sessionsGroup.DELETE("/:id", handler.DeleteSession)
			sessionsGroup.GET("/:id/info", handler.GetSessionInfo)
			sessionsGroup.GET("/:id/effects", handler.GetEffects)
			sessionsGroup.GET("/:id/state", handler.GetState)
			sessionsGroup.POST("/:id/advance", handler.Advance)
			sessionsGroup.POST("/:id/choice", handler.SelectChoice)
			sessionsGroup.POST("/:id/input", handler.SubmitInput)
			sessionsGroup.POST("/:id/reset", handler.ResetSession)
		}
	}

	return r
}

// corsMiddleware answers preflight requests and echoes allowed origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && !cfg.OriginAllowed(origin) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		allow := "*"
		if len(cfg.AllowedOrigins) > 0 && origin != "" {
			allow = origin
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allow)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, X-Request-ID, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
