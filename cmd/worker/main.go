package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strathub/internal/config"
	"strathub/internal/database"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/internal/worker"
	"strathub/pkg/logger"
	"strathub/pkg/polygon"
	"strathub/pkg/redis"

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

	log.Info("Starting StratHub worker...")
	log.Infof("Environment: %s", cfg.Server.Env)

	// Initialize database
	db, err := database.New(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database", err)
	}

	// Initialize Redis
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

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	botRepo := repository.NewBotRepository(db)
	backtestRepo := repository.NewBacktestRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	// Market data client for backtests
	market := polygon.New(polygon.Config{
		APIKey:  cfg.Polygon.APIKey,
		BaseURL: cfg.Polygon.BaseURL,
	}, log)

	// Task queue shared with the API process
	jobs := queue.New(redisClient, queue.DefaultQueue, 24*time.Hour, log)

	backtestWorker := worker.NewBacktestWorker(botRepo, backtestRepo, market, cfg.Backtest.ReportsDir, log)
	tradeWorker := worker.NewTradeWorker(botRepo, tradeRepo, userRepo, jobs, cfg.Gateway, time.Minute, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop-signal listener for running bots
	go tradeWorker.ListenForStops(ctx, redisClient)

	// Consume until shutdown
	go jobs.Consume(ctx, func(ctx context.Context, task queue.Task) {
		switch task.Type {
		case queue.TaskBacktestRun:
			backtestWorker.Handle(ctx, task)
		case queue.TaskTradeRun:
			tradeWorker.Handle(ctx, task)
		default:
			log.Warnf("Dropping task with unknown type %q", task.Type)
		}
	})

	log.Info("✓ Worker started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")
	cancel()

	// Give in-flight handlers a moment to wind down.
	time.Sleep(2 * time.Second)
	log.Info("Worker exited")
}
