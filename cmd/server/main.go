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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andymarrow/stark-api/internal/compose"
	"github.com/andymarrow/stark-api/internal/config"
	"github.com/andymarrow/stark-api/internal/handler"
	"github.com/andymarrow/stark-api/internal/middleware"
	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/repository"
	"github.com/andymarrow/stark-api/internal/service"
	"github.com/andymarrow/stark-api/internal/task"
	"github.com/andymarrow/stark-api/internal/ws"
	"github.com/andymarrow/stark-api/migrations"
	"github.com/andymarrow/stark-api/pkg/auth"
	"github.com/andymarrow/stark-api/pkg/notification"
	"github.com/andymarrow/stark-api/pkg/storage"
)

// @title           Stark Chat API
// @version         1.0
// @description     Real-time messaging API for the Stark developer network: conversations, handshake gating, presence and push notifications.

// @contact.name   API Support
// @contact.email  support@stark.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting Stark API Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(
			&model.User{},
			&model.UserDevice{},
			&model.Conversation{},
			&model.Participant{},
			&model.Message{},
			&model.StrikeRecord{},
			&model.Block{},
			&model.Report{},
		); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	strikeRepo := repository.NewStrikeRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Services
	authService := service.NewAuthService(userRepo, jwtManager, rdb)
	chatService := service.NewChatService(convRepo, msgRepo, userRepo, strikeRepo)
	handshakeService := service.NewHandshakeService(convRepo, strikeRepo)
	moderationService := service.NewModerationService(reportRepo, userRepo, msgRepo, convRepo, chatService)

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(rdb, func(userID uuid.UUID, online bool) {
		_ = userRepo.UpdateOnlineStatus(userID, online)
		log.Printf("👤 User %s is now %s", userID, map[bool]string{true: "ONLINE", false: "OFFLINE"}[online])
	})
	// Keep each instance's stream cache coherent with writes handled
	// on the other instances behind the same Redis channel.
	hub.OnEvent(chatService.ReconcileEvent)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// MinIO Storage
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Printf("⚠️  MinIO not available: %v (image upload disabled)", err)
	}
	if minioStorage != nil {
		log.Println("✅ Connected to MinIO")
	}

	// ==================== Push Notifications (FCM + asynq) ====================
	notifier, err := notification.NewNotificationService(cfg.Firebase.CredentialsFile, userRepo)
	if err != nil {
		log.Printf("⚠️  FCM init warning: %v", err)
	}

	enqueuer := task.NewEnqueuer(cfg.Redis.Addr(), cfg.Redis.Password)
	defer enqueuer.Close()

	processor := task.NewProcessor(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Worker.Concurrency, notifier)
	if err := processor.Start(); err != nil {
		log.Fatalf("❌ Failed to start task processor: %v", err)
	}
	defer processor.Shutdown()

	// Per-user message drafts (staged images, reply context)
	drafts := compose.NewStore()

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService, handshakeService, hub, enqueuer, drafts)
	moderationHandler := handler.NewModerationHandler(moderationService, chatService, hub)
	wsHandler := handler.NewWSHandler(hub, chatService, jwtManager)
	uploadHandler := handler.NewUploadHandler(minioStorage, drafts)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "stark-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager, rdb))
		{
			// Auth & profile
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetProfile)
			protected.PUT("/auth/me", authHandler.UpdateProfile)
			protected.DELETE("/auth/me", moderationHandler.DeleteAccount)
			protected.POST("/auth/devices", authHandler.RegisterDevice)

			// Users
			protected.GET("/users/search", authHandler.SearchUsers)
			protected.GET("/users/blocks", chatHandler.GetBlocks)
			protected.POST("/users/:id/block", chatHandler.BlockUser)
			protected.DELETE("/users/:id/block", chatHandler.UnblockUser)
			protected.POST("/users/:id/messages", chatHandler.SendDirectMessage)

			// Conversations
			protected.GET("/conversations", chatHandler.GetDirectory)
			protected.POST("/conversations", chatHandler.CreateConversation)
			protected.POST("/conversations/direct", chatHandler.ResolveDirect)
			protected.POST("/conversations/resolve-pair", chatHandler.ResolvePair)
			protected.GET("/conversations/:id", chatHandler.GetConversation)
			protected.DELETE("/conversations/:id", moderationHandler.DeleteConversation)
			protected.POST("/conversations/:id/join", chatHandler.JoinConversation)
			protected.POST("/conversations/:id/leave", chatHandler.LeaveConversation)
			protected.POST("/conversations/:id/read", chatHandler.MarkAsRead)

			// Handshake
			protected.POST("/conversations/:id/accept", chatHandler.AcceptHandshake)
			protected.POST("/conversations/:id/reject", chatHandler.RejectHandshake)

			// Messages
			protected.GET("/conversations/:id/messages", chatHandler.GetMessages)
			protected.POST("/conversations/:id/messages", chatHandler.SendMessage)
			protected.GET("/conversations/:id/pinned", chatHandler.GetPinned)
			protected.DELETE("/conversations/:id/users/:userId/messages", moderationHandler.PurgeUserMessages)
			protected.PUT("/messages/:id", chatHandler.EditMessage)
			protected.DELETE("/messages/:id", chatHandler.DeleteMessage)
			protected.POST("/messages/:id/pin", chatHandler.TogglePin)
			protected.POST("/messages/:id/reactions", chatHandler.ToggleReaction)

			// Uploads & drafts
			protected.POST("/upload/avatar", uploadHandler.UploadAvatar)
			protected.POST("/conversations/:id/images", uploadHandler.StageImage)
			protected.DELETE("/conversations/:id/images/:index", uploadHandler.UnstageImage)

			// Moderation
			protected.POST("/reports", moderationHandler.CreateReport)
			protected.GET("/reports", moderationHandler.ListReports)
			protected.POST("/reports/:id/resolve", moderationHandler.ResolveReport)
		}
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 Stark API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 WebSocket: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	hubCancel()
	log.Println("✅ Server exited gracefully")
}
