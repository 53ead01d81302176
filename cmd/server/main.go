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
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/billvault/backend/docs"
	"github.com/billvault/backend/internal/database"
	"github.com/billvault/backend/internal/handlers"
	mW "github.com/billvault/backend/internal/middleware"
	"github.com/billvault/backend/internal/paystack"
	"github.com/billvault/backend/internal/services"
)

// @title BillVault API
// @version 1.0
// @description Wallet ledger and bill payment settlement API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

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

	viper.BindEnv("paystack.secret_key", "PAYSTACK_SECRET_KEY")
	viper.BindEnv("paystack.webhook_secret", "PAYSTACK_WEBHOOK_SECRET")
	viper.BindEnv("paystack.base_url", "PAYSTACK_BASE_URL")

	viper.BindEnv("frontend.url", "FRONTEND_URL")
	viper.BindEnv("bills.airtime_min", "BILLS_AIRTIME_MIN")
	viper.BindEnv("bills.electricity_min", "BILLS_ELECTRICITY_MIN")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "BillVault API"
	docs.SwaggerInfo.Description = "Wallet ledger and bill payment settlement API"
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

	webhookSecret := viper.GetString("paystack.webhook_secret")
	if webhookSecret == "" {
		// Paystack signs webhooks with the API secret key
		webhookSecret = viper.GetString("paystack.secret_key")
	}
	processor := paystack.NewClient(paystack.Config{
		BaseURL:       viper.GetString("paystack.base_url"),
		SecretKey:     viper.GetString("paystack.secret_key"),
		WebhookSecret: webhookSecret,
	})

	walletService := services.NewWalletService(db)
	transactionStore := services.NewTransactionStore(db)
	billStore := services.NewBillPaymentStore(db)
	catalogService := services.NewCatalogService(redisClient)
	settlementService := services.NewSettlementService(walletService, transactionStore, billStore, processor, catalogService)
	authService := services.NewAuthService(db, redisClient, walletService)
	adminService := services.NewAdminService(db, settlementService, billStore)
	qrService := services.NewQRService(redisClient)

	walletHandler := handlers.NewWalletHandler(walletService, transactionStore, settlementService, authService, qrService)
	billsHandler := handlers.NewBillsHandler(settlementService, billStore)
	webhookHandler := handlers.NewWebhookHandler(settlementService, processor)

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

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/admin/login", authService.LoginAdmin)

		// Webhook endpoint: authenticated by signature, not JWT
		r.Post("/webhook/paystack", webhookHandler.HandleWebhook)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.GetProfile)

			r.Get("/wallet/balance", walletHandler.GetBalance)
			r.Post("/wallet/fund", walletHandler.FundWallet)
			r.Post("/wallet/fund/qr", walletHandler.FundWalletQR)
			r.Get("/wallet/fund/qr/{reference}", walletHandler.ResolveFundingQR)
			r.Get("/wallet/verify/{reference}", walletHandler.VerifyFunding)
			r.Get("/wallet/transactions", walletHandler.GetTransactions)

			r.Post("/bills/airtime", billsHandler.PurchaseAirtime)
			r.Post("/bills/electricity", billsHandler.PayElectricity)
			r.Post("/bills/cable", billsHandler.PayCable)
			r.Get("/bills/history", billsHandler.GetHistory)

			// Admin console
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Get("/admin/users", adminService.GetUsers)
				r.Get("/admin/fundings", adminService.GetFundings)
				r.Get("/admin/bills", adminService.GetBills)
				r.Get("/admin/transactions/{id}", adminService.GetTransaction)
				r.Post("/admin/transactions/{id}/retry", adminService.RetryTransaction)
				r.Get("/admin/stats", adminService.GetStats)
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
