package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-surge-signal/internal/engine/config"
	delivery "golang-surge-signal/internal/engine/delivery/http"
	_ "golang-surge-signal/internal/engine/docs"
	"golang-surge-signal/internal/engine/pattern"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/engine/service"
	"golang-surge-signal/internal/engine/strategy"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"
	"golang-surge-signal/pkg/postgres"
	"golang-surge-signal/pkg/redis"
	"golang-surge-signal/pkg/telegram"
	"golang-surge-signal/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the signal service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Signal Service", logger.Field("name", cfg.App.Name), logger.Field("env", cfg.App.Env))

	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	metrics.Register(prometheus.DefaultRegisterer)

	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram bot", logger.ErrorField(err))
		}
	} else {
		appLogger.Warn("Telegram notifications disabled, events are only logged")
	}

	clock := utils.SystemClock()

	// Repositories
	signalRepo := repository.NewSignalRepository(db.DB)
	settingsRepo := repository.NewAutoTradingSettingsRepository(db.DB)
	historyRepo := repository.NewTaskExecutionHistoryRepository(db.DB)
	binanceRepo := repository.NewBinanceRepository(cfg, appLogger, redisClient.Client)

	// Services
	dispatcher := service.NewNotificationDispatcher(appLogger, notifier, signalRepo, clock, cfg.Telegram.SendTimeout)
	reanchorSvc := service.NewReanchorService(cfg, appLogger, signalRepo, settingsRepo)
	autoTrader := service.NewAutoTrader(appLogger, settingsRepo, signalRepo, binanceRepo, reanchorSvc, dispatcher, clock)
	generator := service.NewSignalGenerator(cfg, appLogger, binanceRepo, signalRepo, settingsRepo,
		pattern.DefaultRegistry(), autoTrader, dispatcher, clock)
	monitor := service.NewPositionMonitor(cfg, appLogger, binanceRepo, signalRepo, settingsRepo, dispatcher, clock)
	signalSvc := service.NewSignalService(cfg, appLogger, signalRepo, settingsRepo, binanceRepo, binanceRepo, reanchorSvc, dispatcher, clock)
	historySvc := service.NewExecutionHistoryService(historyRepo, appLogger)

	schedulerSvc := service.NewSchedulerService(cfg, appLogger, historyRepo, redisClient, dispatcher, clock,
		strategy.NewSignalScanStrategy(appLogger, generator),
		strategy.NewPositionMonitorStrategy(appLogger, monitor),
	)
	if cfg.Scheduler.AutoStart {
		if err := schedulerSvc.Start(ctx); err != nil {
			appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = delivery.NewRequestValidator()
	e.Use(middleware.Recover())

	apiV1 := e.Group("/api/v1")
	adminGroup := apiV1.Group("/admin")

	signalHandler := delivery.NewSignalHandler(signalSvc, appLogger)
	signalHandler.RegisterRoutes(apiV1)
	signalHandler.RegisterAdminRoutes(adminGroup)

	delivery.NewSettingsHandler(signalSvc, appLogger).RegisterRoutes(apiV1)
	delivery.NewSchedulerHandler(ctx, schedulerSvc, appLogger).RegisterRoutes(adminGroup)
	delivery.NewExecutionHistoryHandler(historySvc, appLogger).RegisterRoutes(apiV1.Group("/executions"))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", swagger.WrapHandler)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	if err := schedulerSvc.Stop(shutdownCtx); err != nil && err != service.ErrSchedulerStopped {
		appLogger.Error("Scheduler did not stop cleanly", logger.ErrorField(err))
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		appLogger.Warn("Pending notifications dropped", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

// @title Surge Signal API
// @version 1.0
// @description Crypto surge signals, auto-trading settings and sweep scheduling.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "signal-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing signal-service CLI: %s\n", err)
		os.Exit(1)
	}
}
