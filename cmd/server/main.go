package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/takagor/wallet-backend/internal/config"
	"github.com/takagor/wallet-backend/internal/database"
	"github.com/takagor/wallet-backend/internal/handlers"
	"github.com/takagor/wallet-backend/internal/logger"
	mW "github.com/takagor/wallet-backend/internal/middleware"
	"github.com/takagor/wallet-backend/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()

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
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("recon.schedule", "RECON_SCHEDULE")

	log := logger.New()

	// Initialize stores
	db := database.InitDatabase(log)
	defer db.Close()

	redisClient := database.InitRedis(log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	policy := config.LoadPolicy()

	// Initialize services
	accountStore := services.NewAccountStore(db, policy.CASMaxRetries, log)
	ledgerService := services.NewLedgerService(db, log)
	balanceService := services.NewBalanceService(accountStore, ledgerService, redisClient, policy, log)
	referralService := services.NewReferralService(db, log)
	registrationService := services.NewRegistrationService(accountStore, referralService, balanceService, policy, log)
	planService := services.NewPlanService(db, balanceService, log)
	reconService := services.NewReconciliationService(db, ledgerService, log)

	accountHandler := handlers.NewAccountHandler(registrationService, accountStore, referralService, log)
	walletHandler := handlers.NewWalletHandler(balanceService, ledgerService, log)
	planHandler := handlers.NewPlanHandler(planService, log)

	mW.InitAuthMiddleware(redisClient)

	// Periodic balance-vs-ledger reconciliation
	schedule := viper.GetString("recon.schedule")
	if schedule == "" {
		schedule = "@every 10m"
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := reconService.Run(ctx); err != nil {
			log.WithError(err).Warn("reconciliation sweep failed")
		}
	}); err != nil {
		log.WithError(err).Fatal("invalid reconciliation schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/accounts/register", accountHandler.Register)
			r.Get("/accounts/me", accountHandler.Me)
			r.Get("/accounts/me/referral-qr", accountHandler.ReferralQR)

			r.Post("/wallet/deposit", walletHandler.Deposit)
			r.Post("/wallet/withdraw", walletHandler.Withdraw)
			r.Post("/wallet/tokens", walletHandler.BuyTokens)

			r.Get("/transactions", walletHandler.ListTransactions)

			r.Get("/plans", planHandler.List)
			r.Post("/plans/{planID}/purchase", planHandler.Purchase)
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
		log.Infof("server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
