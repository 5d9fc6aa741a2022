package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartlyfy/api-cartlyfy/internal/config"
	"github.com/cartlyfy/api-cartlyfy/internal/handler"
	"github.com/cartlyfy/api-cartlyfy/internal/middleware"
	"github.com/cartlyfy/api-cartlyfy/internal/model"
	"github.com/cartlyfy/api-cartlyfy/internal/repository"
	"github.com/cartlyfy/api-cartlyfy/internal/service"
	"github.com/cartlyfy/api-cartlyfy/migrations"
	"github.com/cartlyfy/api-cartlyfy/pkg/assist"
	"github.com/cartlyfy/api-cartlyfy/pkg/auth"
	"github.com/cartlyfy/api-cartlyfy/pkg/mailer"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           Cartlyfy API
// @version         1.0
// @description     Storefront backend: OTP-verified admin login and order returns, order history, AI shopping assistant.

// @contact.name   API Support
// @contact.email  support@cartlyfy.com

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
	log.Printf("🚀 Starting %s API Server [env=%s]", cfg.App.Name, cfg.App.Env)

	if cfg.OTP.Pepper == "" {
		log.Println("⚠️  OTP_PEPPER is empty; stored code digests are weaker than intended")
	}
	if cfg.OTP.AdminEmail == "" {
		log.Println("⚠️  ADMIN_OTP_EMAIL is not set; admin login OTP is disabled")
	}

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the OTP repository relies on.
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		// Fallback to AutoMigrate if migration files fail. Note the partial
		// unique indexes on the OTP tables only come from the SQL migrations.
		if err := db.AutoMigrate(&model.Order{}); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
		if err := db.Table(model.TableAdminLoginOTPs).AutoMigrate(&model.OTPRecord{}); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
		if err := db.Table(model.TableReturnOTPs).AutoMigrate(&model.OTPRecord{}); err != nil {
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

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Email (Resend) ====================
	mailClient := mailer.New(mailer.Config{
		APIKey:  cfg.Resend.APIKey,
		From:    cfg.Resend.From,
		AppName: cfg.App.Name,
		LogoURL: cfg.OTP.LogoURL,
	})
	if mailClient.Configured() {
		log.Printf("📧 Email provider configured (from: %s)", cfg.Resend.From)
	} else {
		log.Println("⚠️  RESEND_API_KEY not set; OTP emails will not be delivered")
	}

	// ==================== AI Assistant (Gemini) ====================
	assistClient := assist.New(cfg.Gemini.APIKey)
	if !assistClient.Configured() {
		log.Println("⚠️  GEMINI_API_KEY not set; /assist is disabled")
	}

	// ==================== Initialize Layers ====================
	// JWT Manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	adminOTPRepo := repository.NewOTPRepository(db, model.TableAdminLoginOTPs)
	returnOTPRepo := repository.NewOTPRepository(db, model.TableReturnOTPs)
	orderRepo := repository.NewOrderRepository(db)

	// Services. Both flows share the 10-minute TTL and 5-attempt cap; the
	// admin flow throttles resends harder and stamps verified_at on success.
	adminCore := service.NewOTPService(adminOTPRepo, cfg.OTP.Pepper, service.OTPPolicy{
		CodeLength:     6,
		TTL:            10 * time.Minute,
		ResendCooldown: 60 * time.Second,
		MaxAttempts:    5,
		MarkVerified:   true,
	})
	returnCore := service.NewOTPService(returnOTPRepo, cfg.OTP.Pepper, service.OTPPolicy{
		CodeLength:     6,
		TTL:            10 * time.Minute,
		ResendCooldown: 10 * time.Second,
		MaxAttempts:    5,
	})

	adminOTPService := service.NewAdminOTPService(adminCore, mailClient, cfg.OTP.AdminEmail)
	returnOTPService := service.NewReturnOTPService(returnCore, orderRepo, mailClient)

	// Handlers
	adminOTPHandler := handler.NewAdminOTPHandler(adminOTPService)
	returnOTPHandler := handler.NewReturnOTPHandler(returnOTPService)
	orderHandler := handler.NewOrderHandler(orderRepo)
	assistHandler := handler.NewAssistHandler(assistClient)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Swagger configuration
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
			"service": "cartlyfy-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	{
		// Admin login OTP (public; the flow authorizes by configured email)
		api.POST("/admin/login-otp", adminOTPHandler.Handle)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager, rdb))
		{
			protected.POST("/returns/otp", returnOTPHandler.Handle)

			protected.GET("/orders", orderHandler.ListOrders)
			protected.GET("/orders/:id", orderHandler.GetOrder)

			protected.POST("/assist", assistHandler.Generate)
		}
	}

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 %s API running on http://0.0.0.0:%s", cfg.App.Name, cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("📄 Swagger JSON: http://0.0.0.0:%s/docs/swagger.json", cfg.App.Port)

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

	log.Println("✅ Server exited gracefully")
}
