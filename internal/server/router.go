package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/firmdesk/firmdesk-backend/internal/handlers"
	"github.com/firmdesk/firmdesk-backend/internal/middleware"
)

type RouterConfig struct {
	Mode                string
	AllowedOrigins      []string
	Auth                *middleware.AuthMiddleware
	RealtimeHandler     *handlers.RealtimeHandler
	ActivityHandler     *handlers.ActivityHandler
	NotificationHandler *handlers.NotificationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("firmdesk-backend"))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthcheck", handlers.Healthcheck)

	protected := r.Group("/")
	protected.Use(cfg.Auth.RequireAuth())
	{
		protected.GET("/realtime", cfg.RealtimeHandler.Stream)
		protected.GET("/realtime/ws", cfg.RealtimeHandler.StreamWS)
		protected.POST("/realtime/emit", cfg.RealtimeHandler.Emit)

		if cfg.ActivityHandler != nil {
			protected.GET("/activity", cfg.ActivityHandler.List)
			protected.POST("/activity", cfg.ActivityHandler.Record)
		}
		if cfg.NotificationHandler != nil {
			protected.GET("/notifications", cfg.NotificationHandler.ListUnread)
			protected.POST("/notifications", cfg.NotificationHandler.Create)
			protected.POST("/notifications/:id/read", cfg.NotificationHandler.MarkRead)
		}
	}

	return r
}
