// cmd/api/main.go
// Main entry point for the realtime messaging service
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edustack/edustack-realtime/internal/auth"
	"github.com/edustack/edustack-realtime/internal/chat"
	"github.com/edustack/edustack-realtime/internal/common/database"
	"github.com/edustack/edustack-realtime/internal/config"
	"github.com/edustack/edustack-realtime/internal/notification"
	"github.com/edustack/edustack-realtime/internal/privatechat"
	"github.com/edustack/edustack-realtime/internal/realtime"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting EduStack Realtime API")
	log.Println("========================================")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed: ", err)
	}
	log.Printf("✅ Configuration loaded (env=%s)", cfg.Environment)

	// 3. Connect to PostgreSQL
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL: ", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL")

	// 4. Run migrations
	if err := runMigrations(db, cfg.GlobalRoomName); err != nil {
		log.Fatal("❌ Migrations failed: ", err)
	}
	log.Println("✅ Migrations applied")

	// 5. Connect to Redis (optional, unread counters fall back to SQL)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), unread counters will hit the database", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis")
		}
	}

	// 6. Attachment storage
	var uploader chat.Uploader
	if cfg.UseS3 {
		uploader, err = chat.NewS3Uploader(cfg.AWSRegion, cfg.S3Bucket, cfg.MaxUploadSize)
		if err != nil {
			log.Fatal("❌ Failed to initialize S3 storage: ", err)
		}
		log.Printf("✅ S3 storage ready (bucket=%s)", cfg.S3Bucket)
	} else {
		uploader, err = chat.NewLocalUploader(cfg.LocalUploadDir, cfg.BaseURL, cfg.MaxUploadSize)
		if err != nil {
			log.Fatal("❌ Failed to initialize local storage: ", err)
		}
		log.Printf("✅ Local storage ready (dir=%s)", cfg.LocalUploadDir)
	}

	// 7. Realtime core
	typing := realtime.NewTypingCoordinator(cfg.TypingExpiry)
	presence := realtime.NewPresenceStore(db)
	hub := realtime.NewHub(presence, typing)

	// 8. Services
	notifRepo := notification.NewPostgresRepository(db)
	notifSvc := notification.NewService(notifRepo, hub)

	chatRepo := chat.NewPostgresRepository(db)
	chatSvc := chat.NewService(chatRepo, hub, notifSvc, cfg.MaxMessageLength, cfg.HistoryPageLimit)

	privateRepo := privatechat.NewPostgresRepository(db)
	privateSvc := privatechat.NewService(privateRepo, hub, notifSvc, redisClient, cfg.UnreadCountTTL, cfg.MaxMessageLength, cfg.HistoryPageLimit)

	// A user's first session coming online advances their pending receipts
	hub.SetOnFirstSession(func(userID int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		privateSvc.MarkDelivered(ctx, userID)
	})

	wsRouter := realtime.NewRouter(hub, chatSvc, privateSvc, typing)
	wsHandler := realtime.NewWSHandler(hub, wsRouter, cfg.JWTSecret, cfg.SendQueueSize)

	janitor := notification.NewJanitor(notifRepo, 1*time.Hour, 30*24*time.Hour)
	janitor.Start()
	defer janitor.Stop()

	// 9. HTTP routes
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/ws", wsHandler.ServeWS)

	api := router.PathPrefix("/api/v1").Subrouter()
	chat.RegisterRoutes(api, chat.NewHandlers(chatSvc, uploader), authMiddleware)
	privatechat.RegisterRoutes(api, privatechat.NewHandlers(privateSvc), authMiddleware)
	notification.RegisterRoutes(api, notification.NewHandlers(notifSvc), authMiddleware)

	presenceRouter := api.PathPrefix("/presence").Subrouter()
	presenceRouter.Use(authMiddleware.Authenticate)
	presenceRouter.HandleFunc("/online", wsHandler.OnlineUsers).Methods("GET")

	if !cfg.UseS3 {
		router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.LocalUploadDir))))
	}

	// 10. Start server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Server error: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")

	// Close live sessions cleanly so clients do not reconnect into the void
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Forced shutdown: %v", err)
	}

	log.Println("👋 Server stopped")
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
