package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"travel_backend_project/cache"
	"travel_backend_project/config"
	"travel_backend_project/models"
	"travel_backend_project/notify"
	"travel_backend_project/providers"
	"travel_backend_project/routes"
	"travel_backend_project/scheduler"
)

func main() {
	log.Println("==============================================")
	log.Println("  Travel Price Monitor API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Job store
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Job store connection failed: %v", err)
	}
	log.Println("Running job store migrations...")
	if err := models.MigrateMonitorModels(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Price cache: durable MongoDB backend with in-memory fallback.
	// A missing or unreachable backend is not fatal; the cache runs
	// degraded and recovers when the health check succeeds.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var mongoBackend *cache.MongoBackend
	var kv *cache.Cache
	if cfg.MongoURI == "" {
		log.Println("MONGODB_URI not set, price cache runs in-memory only")
		kv = cache.New(nil)
	} else {
		mongoBackend, err = cache.NewMongoBackend(rootCtx, cfg.MongoURI)
		if err != nil {
			log.Printf("MongoDB unavailable, starting in fallback mode: %v", err)
			kv = cache.New(nil)
		} else {
			kv = cache.New(mongoBackend)
			go kv.RunHealthChecks(rootCtx, 30*time.Second)
		}
	}
	prices := cache.NewPriceCache(kv)

	// External search providers and the notification hub
	registry := &providers.Registry{
		Flights: providers.NewFlightProvider(cfg.FlightAPIURL, cfg.FlightAPIKey),
		Hotels:  providers.NewHotelProvider(cfg.HotelAPIURL, cfg.HotelAPIKey),
	}
	hub := notify.NewHub()

	// Price scheduler
	sched := scheduler.NewPriceScheduler(db, prices, registry, hub, scheduler.DefaultConfig())
	sched.Start()

	// Routes and health endpoints
	setupHealthEndpoints(router, kv, sched)
	routes.SetupRoutes(router, cfg, sched, prices, hub)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, sched, hub, mongoBackend)
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine, kv *cache.Cache, sched *scheduler.PriceScheduler) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Travel Price Monitor API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness probe - reports degraded cache mode without failing,
	// the scheduler still works against the fallback
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"cache_mode": kv.Mode(),
			"scheduler":  sched.IsRunning(),
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown stops the scheduler, drains the server and closes
// backends on SIGINT/SIGTERM
func gracefulShutdown(server *http.Server, sched *scheduler.PriceScheduler, hub *notify.Hub, mongoBackend *cache.MongoBackend) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop the scheduler first so in-flight refreshes finish cleanly
	sched.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if mongoBackend != nil {
		if err := mongoBackend.Close(); err != nil {
			log.Printf("Error closing MongoDB connection: %v", err)
		}
	}

	log.Println("Server shutdown completed")
}
