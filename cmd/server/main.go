package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/amanuela97/golden-hive-settlement/config"
	"github.com/amanuela97/golden-hive-settlement/internal/fees"
	invRepoPkg "github.com/amanuela97/golden-hive-settlement/internal/inventory/repository"
	ledgerRepoPkg "github.com/amanuela97/golden-hive-settlement/internal/ledger/repository"
	ledgerUCPkg "github.com/amanuela97/golden-hive-settlement/internal/ledger/usecase"
	"github.com/amanuela97/golden-hive-settlement/internal/notifier"
	orderRepoPkg "github.com/amanuela97/golden-hive-settlement/internal/order/repository"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/broker"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/cache"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/logger"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/postgres"
	"github.com/amanuela97/golden-hive-settlement/internal/processor"
	settlementH "github.com/amanuela97/golden-hive-settlement/internal/settlement/handler"
	settlementUCPkg "github.com/amanuela97/golden-hive-settlement/internal/settlement/usecase"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     false,
		DisableStacktrace: false,
	}
	if cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka Producer
	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer kafkaProducer.Close()
	appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// 6. Initialize Repositories
	orderRepo := orderRepoPkg.NewPGRepository(db)
	ledgerRepo := ledgerRepoPkg.NewPGRepository(db)
	reserver := invRepoPkg.NewPGReserver(db)

	// 7. Initialize Processor Client
	processorClient := processor.NewClient(
		cfg.Processor.APIBaseURL,
		cfg.Processor.APIKey,
		time.Duration(cfg.Processor.TimeoutSeconds)*time.Second,
	)

	// 8. Initialize UseCases
	feeCalc := fees.NewCalculator(cfg.Fees.PlatformRateBps, cfg.Fees.ProcessorRateBps, cfg.Fees.ProcessorFixedFee)
	kafkaNotifier := notifier.NewKafkaNotifier(kafkaProducer)

	ledgerUC := ledgerUCPkg.NewLedgerUseCase(ledgerRepo, redisClient, processorClient, appLogger)
	settlementUC := settlementUCPkg.NewSettlementUseCase(
		orderRepo, ledgerRepo, redisClient, reserver, processorClient, kafkaNotifier,
		feeCalc, cfg.Fees.SettlementHoldDays, appLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8.5 Start hold-release worker
	if cfg.Fees.SettlementHoldDays > 0 {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := ledgerUC.ReleaseDueHolds(ctx); err != nil {
						appLogger.Error("hold release pass failed", zap.Error(err))
					}
				}
			}
		}()
	}

	// 9. Initialize HTTP Server
	if cfg.Server.AppEnv != "dev" && cfg.Server.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	webhookHandler := settlementH.NewWebhookHandler(settlementUC, ledgerUC, cfg.Processor.WebhookSecret, appLogger)
	webhookHandler.RegisterRoutes(router)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: router,
	}

	appLogger.Info("Starting HTTP server", zap.String("port", cfg.Server.HTTPPort))

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("forced shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
