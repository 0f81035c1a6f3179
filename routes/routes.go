package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"travel_backend_project/cache"
	"travel_backend_project/config"
	"travel_backend_project/controllers"
	"travel_backend_project/middleware"
	"travel_backend_project/notify"
	"travel_backend_project/scheduler"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, sched *scheduler.PriceScheduler, prices *cache.PriceCache, hub *notify.Hub) {
	monitorController := controllers.NewMonitorController(sched, prices)
	alertController := controllers.NewAlertController(prices, hub)

	writeLimiter := middleware.NewRateLimiter(60, time.Minute)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Monitoring job routes
		monitor := api.Group("/monitor")
		monitor.Use(writeLimiter.Middleware())
		{
			monitor.POST("/jobs", monitorController.AddJob)
			monitor.GET("/jobs/:id", monitorController.GetJob)
			monitor.DELETE("/jobs/:id", monitorController.RemoveJob)
			monitor.GET("/stats", monitorController.GetStats)
		}

		// Cached price routes
		prices := api.Group("/prices")
		{
			prices.GET("/:kind", monitorController.GetCachedPrice)
			prices.GET("/:kind/history", monitorController.GetPriceHistory)
		}

		// Alert routes require an authenticated user
		alerts := api.Group("/alerts")
		alerts.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		alerts.Use(writeLimiter.Middleware())
		{
			alerts.POST("", alertController.CreateAlert)
			alerts.GET("", alertController.GetUserAlerts)
			alerts.DELETE("/:id", alertController.DeleteAlert)
		}
	}

	// WebSocket notification stream
	ws := router.Group("/ws")
	ws.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		ws.GET("/notifications", alertController.HandleNotifications)
	}
}
