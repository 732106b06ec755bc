package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strathub/internal/config"
	"strathub/internal/database"
	"strathub/internal/handler"
	"strathub/internal/middleware"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/internal/service"
	"strathub/pkg/jwt"
	"strathub/pkg/logger"
	"strathub/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.GetLogger()

	log.Info("Starting StratHub API...")
	log.Infof("Environment: %s", cfg.Server.Env)

	// Initialize database
	log.Info("Opening database...")
	db, err := database.New(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database", err)
	}

	// Initialize Redis
	log.Info("Connecting to Redis...")
	redisClient, err := redis.New(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	log.Info("✓ Redis connected")

	// Set Gin mode
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Apply middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimit.RequestsPerMinute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "Redis connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"redis":  "connected",
		})
	})

	// Initialize JWT manager
	jwtManager := jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)

	// Task queue shared with the worker process
	jobs := queue.New(redisClient, queue.DefaultQueue, 24*time.Hour, log)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	botRepo := repository.NewBotRepository(db)
	backtestRepo := repository.NewBacktestRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager, cfg.Google)
	userService := service.NewUserService(userRepo)
	botService := service.NewBotService(botRepo)
	backtestService := service.NewBacktestService(botRepo, backtestRepo, jobs, log)
	tradeService := service.NewTradeService(botRepo, tradeRepo, userRepo, jobs, redisClient, log)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, cfg)
	userHandler := handler.NewUserHandler(userService)
	botHandler := handler.NewBotHandler(botService)
	backtestHandler := handler.NewBacktestHandler(backtestService)
	tradeHandler := handler.NewTradeHandler(tradeService)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/register", middleware.AuthRateLimit(redisClient, cfg.RateLimit.AuthRequestsPerMinute), authHandler.Register)
			auth.POST("/login", middleware.AuthRateLimit(redisClient, cfg.RateLimit.AuthRequestsPerMinute), authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.AuthMiddleware(authService), authHandler.GetMe)
			auth.GET("/google/login", authHandler.GoogleLogin)
			auth.GET("/google/callback", authHandler.GoogleCallback)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.AuthMiddleware(authService))
		{
			users.GET("/profile", userHandler.GetProfile)
			users.GET("/ibkr_status", userHandler.GetIBKRStatus)
			users.PATCH("/ibkr_paper", userHandler.UpdateIBKRPaper)
			users.PATCH("/ibkr_live", userHandler.UpdateIBKRLive)
		}

		// Bot routes
		bots := v1.Group("/bots")
		bots.Use(middleware.AuthMiddleware(authService))
		{
			bots.POST("/create", botHandler.Create)
			bots.GET("/my_bots", botHandler.List)
			bots.GET("/all_bots", botHandler.ListPublic)
			bots.GET("/:id", botHandler.Get)
			bots.PATCH("/:id", botHandler.Update)
			bots.PATCH("/:id/toggle_status", botHandler.Toggle)
			bots.DELETE("/:id", botHandler.Delete)
		}

		// Backtest routes
		backtests := v1.Group("/backtests")
		backtests.Use(middleware.AuthMiddleware(authService))
		{
			backtests.POST("/run", backtestHandler.Run)
			backtests.GET("/:botId", backtestHandler.LatestResult)
		}

		// Trade routes
		trades := v1.Group("/trades")
		trades.Use(middleware.AuthMiddleware(authService))
		{
			trades.GET("/", tradeHandler.List)
			trades.POST("/run", tradeHandler.Run)
			trades.POST("/stop/:botId", tradeHandler.Stop)
			trades.GET("/bot/:botId", tradeHandler.ListByBot)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Server starting on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", err)
		}
	}()

	log.Info("✓ Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", err)
	}

	log.Info("Server exited")
}
