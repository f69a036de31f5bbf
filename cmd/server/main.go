package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/gemstore/backend/docs"
	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/database"
	mW "github.com/gemstore/backend/internal/middleware"
	"github.com/gemstore/backend/internal/services"
)

// @title GemStore Backend API
// @version 1.0
// @description API for the GemStore diamond top-up storefront
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("settlement.currency", "SETTLEMENT_CURRENCY")
	viper.BindEnv("speech.language", "SPEECH_LANGUAGE")

	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("jwt.expiry_hours", 72)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "GemStore Backend API"
	docs.SwaggerInfo.Description = "API for the GemStore diamond top-up storefront"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewLogger()

	ledgerService := services.NewLedgerService(db)
	configService := services.NewConfigService(db, redisClient, auditLogger)
	authService := services.NewAuthService(db, redisClient)
	catalogService := services.NewCatalogService(db, redisClient, auditLogger)
	orderService := services.NewOrderService(db, ledgerService, configService, auditLogger)
	depositService := services.NewDepositService(db, redisClient, configService)
	rewardService := services.NewRewardService(db, ledgerService, configService, auditLogger)
	redeemService := services.NewRedeemService(db, redisClient, ledgerService, auditLogger)
	adminService := services.NewAdminService(db, ledgerService, auditLogger)
	contentService := services.NewContentService(db, auditLogger)
	settlementService := services.NewSettlementService(db, auditLogger)

	chatService, err := services.NewChatService(context.Background(), db, redisClient, configService)
	if err != nil {
		log.Fatalf("Failed to initialize chat assistant: %v", err)
	}
	defer chatService.Close()

	voiceService := services.NewVoiceService()
	defer voiceService.Close()

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for channel logos and banners
	r.Handle("/static/*", http.StripPrefix("/static/",
		mW.StaticFileServer("./static")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/offers", catalogService.ListOffers)
		r.Get("/config", configService.GetConfig)
		r.Get("/payment-channels", depositService.ListChannels)
		r.Get("/banners", contentService.ListBanners)
		r.Get("/notices", contentService.ListNotices)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)
			r.Put("/auth/profile", authService.UpdateProfile)

			r.Get("/orders", orderService.ListOrders)
			r.Post("/orders", orderService.CreateOrder)
			r.Get("/orders/{id}", orderService.GetOrder)

			r.Get("/wallet/transactions", depositService.ListTransactions)
			r.Post("/wallet/deposits", depositService.CreateDeposit)
			r.Post("/wallet/redeem", redeemService.Redeem)

			r.Post("/rewards/ad", rewardService.ClaimAdReward)

			r.Post("/chat", chatService.Send)
			r.Post("/chat/reset", chatService.Reset)
			r.Post("/chat/voice-transcribe", voiceService.TranscribeAudio)

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Get("/admin/orders", adminService.ListAllOrders)
				r.Post("/admin/orders/{id}/complete", adminService.CompleteOrder)
				r.Post("/admin/orders/{id}/fail", adminService.FailOrder)

				r.Get("/admin/transactions", adminService.ListAllDeposits)
				r.Post("/admin/transactions/{id}/approve", adminService.ApproveDeposit)
				r.Post("/admin/transactions/{id}/reject", adminService.RejectDeposit)

				r.Post("/admin/accounts/{accountId}/adjust", adminService.AdjustBalance)
				r.Post("/admin/accounts/{accountId}/suspend", adminService.SuspendAccount)
				r.Post("/admin/accounts/{accountId}/reinstate", adminService.ReinstateAccount)

				r.Post("/admin/offers", catalogService.CreateOffer)
				r.Put("/admin/offers/{id}", catalogService.UpdateOffer)
				r.Delete("/admin/offers/{id}", catalogService.DeleteOffer)
				r.Post("/admin/offers/reorder", catalogService.ReorderOffers)

				r.Post("/admin/banners", contentService.CreateBanner)
				r.Put("/admin/banners/{id}", contentService.UpdateBanner)
				r.Delete("/admin/banners/{id}", contentService.DeleteBanner)
				r.Post("/admin/banners/reorder", contentService.ReorderBanners)

				r.Post("/admin/notices", contentService.CreateNotice)
				r.Delete("/admin/notices/{id}", contentService.DeleteNotice)

				r.Post("/admin/payment-channels", contentService.CreateChannel)
				r.Put("/admin/payment-channels/{id}", contentService.UpdateChannel)
				r.Delete("/admin/payment-channels/{id}", contentService.DeleteChannel)

				r.Put("/admin/config", configService.UpdateConfig)
				r.Post("/admin/vouchers", redeemService.GenerateCodes)
				r.Get("/admin/settlement/export", settlementService.ExportDeposits)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
