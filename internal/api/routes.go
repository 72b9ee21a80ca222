package api

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/playmatatu/billiards/internal/api/handlers"
	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/middleware"
	"github.com/playmatatu/billiards/internal/session"
	"github.com/playmatatu/billiards/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, mgr *session.Manager, hub *ws.Hub, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(mgr))

		tables := v1.Group("/tables")
		{
			tables.POST("", handlers.CreateTable(mgr, cfg))
			tables.GET("", handlers.ListTables(mgr))
			tables.GET("/:id", handlers.GetTable(mgr))
			tables.GET("/:id/shots", handlers.ShotHistory(mgr))
			tables.GET("/:id/ws", middleware.WebSocketCORSCheck(cfg), ws.NewHandler(hub, mgr, cfg).HandleWebSocket)
		}

		// Changing a table needs the control token issued when it was created
		control := v1.Group("/tables/:id")
		control.Use(middleware.TableAuthMiddleware(cfg))
		{
			control.DELETE("", handlers.CloseTable(mgr))
			control.POST("/shot", handlers.TakeShot(mgr))
			control.POST("/rerack", handlers.Rerack(mgr))
			control.POST("/cue", handlers.PlaceCueBall(mgr))
			control.POST("/advance", handlers.AdvanceTable(mgr))
		}
	}
}
