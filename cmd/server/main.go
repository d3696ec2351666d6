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
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/config"
	"github.com/matekasse/backend/internal/database"
	"github.com/matekasse/backend/internal/handlers"
	"github.com/matekasse/backend/internal/ledger"
	mW "github.com/matekasse/backend/internal/middleware"
	"github.com/matekasse/backend/internal/notify"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

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

	viper.BindEnv("auth.token_secret", "AUTH_TOKEN_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		logger.Info("config file not found, using environment and defaults", zap.Error(err))
	}

	serverConfig := config.LoadServerConfig()

	// Initialize storage
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	redisClient := database.InitRedis(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Core services
	registry := ledger.NewRegistry(db, logger)
	engine := ledger.NewEngine(db, logger)
	audit := ledger.NewAudit(db)
	gate := ledger.NewGate(registry, logger)
	notifier := notify.New(redisClient, logger)

	if serverConfig.BootstrapAdminID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := registry.EnsureAdmin(ctx, serverConfig.BootstrapAdminID, serverConfig.BootstrapAdmin); err != nil {
			logger.Warn("bootstrapping admin failed", zap.Error(err))
		}
		cancel()
	}

	accountHandler := handlers.NewAccountHandler(registry, gate, notifier, logger)
	balanceHandler := handlers.NewBalanceHandler(engine, registry, gate, notifier, logger)
	auditHandler := handlers.NewAuditHandler(audit, registry, gate)
	announceHandler := handlers.NewAnnounceHandler(registry, gate, notifier, logger)

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
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes: every endpoint needs a resolved actor identity; account
	// state is checked per operation by the authorization gate.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.ActorAuth)

		r.Post("/register", accountHandler.Register)
		r.Get("/accounts/me", accountHandler.Me)
		r.Get("/accounts", accountHandler.List)
		r.Post("/accounts/{target}/approve", accountHandler.Approve)
		r.Post("/accounts/{target}/reject", accountHandler.Reject)
		r.Put("/accounts/{target}/admin", accountHandler.SetAdmin)
		r.Put("/accounts/{target}/blocked", accountHandler.SetBlocked)

		r.Post("/drinks", balanceHandler.Drink)
		r.Post("/deposits/return", balanceHandler.ReturnDeposit)
		r.Put("/accounts/{target}/balance", balanceHandler.AdjustBalance)
		r.Put("/accounts/{target}/deposit", balanceHandler.AdjustDeposit)
		r.Get("/inventory", balanceHandler.Inventory)
		r.Put("/inventory", balanceHandler.AdjustInventory)

		r.Get("/transactions", auditHandler.History)

		r.Post("/announcements", announceHandler.Announce)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + serverConfig.Port,
		Handler:      r,
		ReadTimeout:  serverConfig.ReadTimeout,
		WriteTimeout: serverConfig.WriteTimeout,
		IdleTimeout:  serverConfig.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
