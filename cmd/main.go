package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sgco/clinic-backend/internal/data/db"
	"github.com/sgco/clinic-backend/internal/data/repos"
	httpserver "github.com/sgco/clinic-backend/internal/http"
	"github.com/sgco/clinic-backend/internal/http/handlers"
	"github.com/sgco/clinic-backend/internal/http/middleware"
	"github.com/sgco/clinic-backend/internal/platform/envutil"
	"github.com/sgco/clinic-backend/internal/platform/logger"
	"github.com/sgco/clinic-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecret := envutil.String("JWT_SECRET_KEY", "defaultsecret")
	redisAddr := envutil.String("REDIS_ADDR", "")

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Redis (optional, reports run uncached without it)
	var redisClient *redis.Client
	if redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		})
	} else {
		log.Warn("REDIS_ADDR not set, report caching disabled")
	}

	// Repos
	log.Info("Setting up Repos from main...")
	budgetRepo := repos.NewBudgetRepo(thePG, log)
	ledgerRepo := repos.NewLedgerRepo(thePG, log)
	txLogRepo := repos.NewTransactionLogRepo(thePG, log)
	eventRepo := repos.NewPaymentEventRepo(thePG, log)
	patientRepo := repos.NewPatientRepo(thePG, log)
	planRepo := repos.NewTreatmentPlanRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	reportCache := services.NewReportCache(redisClient, log)
	budgetService := services.NewBudgetService(thePG, log, budgetRepo, ledgerRepo, patientRepo, planRepo)
	paymentService := services.NewPaymentService(thePG, log, budgetRepo, ledgerRepo, txLogRepo, eventRepo, reportCache)
	reportService := services.NewReportService(log, budgetRepo, txLogRepo, reportCache)

	// Handlers
	log.Info("Setting up handlers from main...")
	budgetHandler := handlers.NewBudgetHandler(log, budgetService)
	paymentHandler := handlers.NewPaymentHandler(log, paymentService)
	reportHandler := handlers.NewFinancialReportHandler(log, reportService)
	healthHandler := handlers.NewHealthHandler()

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecret)

	// Router
	log.Info("Setting up router from main...")
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:                    log,
		AuthMiddleware:         authMiddleware,
		BudgetHandler:          budgetHandler,
		PaymentHandler:         paymentHandler,
		FinancialReportHandler: reportHandler,
		HealthHandler:          healthHandler,
	})

	port := envutil.String("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
