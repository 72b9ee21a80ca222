package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/playmatatu/billiards/internal/api"
	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/database"
	"github.com/playmatatu/billiards/internal/migrations"
	"github.com/playmatatu/billiards/internal/redis"
	"github.com/playmatatu/billiards/internal/session"
	"github.com/playmatatu/billiards/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize configuration
	cfg := config.Load()
	if cfg.Environment == "production" && cfg.JWTSecret == "change-me-in-production" {
		log.Println("[CONFIG] JWT_SECRET is the default; table control tokens can be forged")
	}

	tuning, err := config.LoadPhysics(cfg.PhysicsConfigPath)
	if err != nil {
		log.Fatalf("Failed to load physics config: %v", err)
	}

	// Shot history is optional
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			log.Println("↗ Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, db); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
	} else {
		log.Println("[DB] DATABASE_URL not set; shot history disabled")
	}

	// Snapshots and cross-instance events are optional
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
	} else {
		log.Println("[REDIS] REDIS_URL not set; table snapshots disabled")
	}

	sessions := session.NewManager(db, rdb, session.OptionsFromConfig(cfg, tuning))
	defer sessions.Shutdown()
	go sessions.StartIdleReaper(time.Minute)

	hub := ws.NewHub()
	sessions.SetPublisher(hub)
	go hub.Run(ctx)
	ws.StartTableEventSubscriber(ctx, sessions, hub)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, sessions, hub, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting billiards server on port %s (tick rate %.0f Hz)", cfg.Port, cfg.TickRateHz)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
