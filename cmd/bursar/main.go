package main

import (
	"context"
	"strings"

	"tipcast/internal/handlers"
	"tipcast/pkg/auth"
	"tipcast/pkg/config"
	"tipcast/pkg/database"
	dbsql "tipcast/pkg/database/sql"
	"tipcast/pkg/kafka"
	"tipcast/pkg/logging"
	"tipcast/pkg/monitoring"
	"tipcast/pkg/server"
	"tipcast/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("bursar")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Bursar (Settlement API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if config.GetEnvBool("MIGRATE_ON_BOOT", false) {
		if _, err := db.Exec(dbsql.Schema); err != nil {
			logger.WithError(err).Fatal("Failed to apply settlement schema")
		}
		logger.Info("Settlement schema applied")
	}

	// Kafka producer for settlement events (optional; fan-out is best-effort)
	var producer *kafka.Producer
	if brokersEnv := config.GetEnv("KAFKA_BROKERS", ""); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		topic := config.GetEnv("SETTLEMENT_KAFKA_TOPIC", "settlement_events")
		p, err := kafka.NewProducer(brokers, topic, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Kafka producer, settlement events disabled")
		} else {
			producer = p
			defer producer.Close()
		}
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("bursar", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("bursar", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
		"JWT_SECRET":   jwtSecret,
	}))
	if producer != nil {
		healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
	}

	// Create settlement metrics
	metrics := handlers.NewMetrics(metricsCollector)

	// Initialize handlers
	handlers.Init(db, logger, metrics, producer)

	// Initialize and start JobManager for background settlement tasks
	jobManager := handlers.NewJobManager(db, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobManager.Start(ctx)
	defer jobManager.Stop()

	logger.Info("JobManager started - background settlement jobs active")

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "bursar", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/wallet/ prefix)
	{
		// Authentication required endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			protected.GET("/wallet/balances", handlers.GetBalances)
			protected.GET("/wallet/balance", handlers.GetBalance)
			protected.GET("/wallet/limits", handlers.GetLimits)
			protected.GET("/wallet/transactions", handlers.GetTransactions)
			protected.GET("/wallet/withdrawals", handlers.GetWithdrawals)
			protected.POST("/wallet/withdrawals", handlers.CreateWithdrawal)
		}

		// Webhook endpoints (no auth required, signature-verified)
		router.POST("/webhooks/:provider", handlers.HandleProviderWebhook)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("bursar", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
