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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/outreachlab/telegram-mailer-backend/internal/database"
	"github.com/outreachlab/telegram-mailer-backend/internal/database/repository"
	"github.com/outreachlab/telegram-mailer-backend/internal/router"
	"github.com/outreachlab/telegram-mailer-backend/internal/services"
	"github.com/outreachlab/telegram-mailer-backend/internal/services/auth"
	"github.com/outreachlab/telegram-mailer-backend/internal/services/excel"
	"github.com/outreachlab/telegram-mailer-backend/internal/telegram"
	"github.com/outreachlab/telegram-mailer-backend/internal/utils"

	// Import Swagger docs
	_ "github.com/outreachlab/telegram-mailer-backend/docs"
)

// @title Telegram Mailer Backend API
// @version 1.0
// @description Campaign engine for templated Telegram bulk messaging
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@outreachlab.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter `Bearer ` followed by your JWT token (e.g. "Bearer <token>")

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configureLogging()

	utils.InitSentry()

	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	historyRepo := repository.NewSendingHistoryRepository(db)
	receiverRepo := repository.NewReportReceiverRepository(db)

	// Sending infrastructure
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		logrus.Fatal("TELEGRAM_BOT_TOKEN is required")
	}
	idleTTL := time.Duration(getEnvAsInt("SESSION_IDLE_TTL", 600)) * time.Second
	sessionPool := telegram.NewSessionPool(func(ownerID int64) (telegram.Session, error) {
		return telegram.NewBotSession(botToken), nil
	}, idleTTL)
	defer sessionPool.Close()

	notifier := telegram.NewBotSession(botToken)

	// Services
	authService := auth.NewAuthService(db)
	duplicateService := services.NewDuplicateService(historyRepo)
	senderService := services.NewSenderService(sessionPool)
	reportService := services.NewReportService(campaignRepo, templateRepo, historyRepo, receiverRepo, notifier)
	mailingService := services.NewMailingService(
		campaignRepo, recipientRepo, historyRepo, templateRepo,
		duplicateService, senderService, reportService)
	templateService := services.NewTemplateService(templateRepo)
	excelService := excel.NewExcelService(campaignRepo, templateRepo, historyRepo, getEnv("EXPORTS_DIR", "exports"))

	// Campaigns stuck in processing from a previous run cannot be resumed
	if err := mailingService.FailOrphaned(); err != nil {
		logrus.Errorf("Orphaned campaign recovery failed: %v", err)
	}

	// RabbitMQ dispatch pipeline
	rabbitMQService, err := services.NewRabbitMQService()
	if err != nil {
		logrus.Fatalf("Failed to initialize RabbitMQ: %v", err)
	}
	defer rabbitMQService.Close()

	campaignService := services.NewCampaignService(
		campaignRepo, recipientRepo, templateRepo, historyRepo, sessionPool, rabbitMQService)

	if err := rabbitMQService.StartDispatchConsumer(func(campaignID uint) {
		if err := mailingService.ProcessCampaign(context.Background(), campaignID); err != nil {
			logrus.Errorf("Campaign %d processing failed: %v", campaignID, err)
		}
	}); err != nil {
		logrus.Fatalf("Failed to start dispatch consumer: %v", err)
	}

	// Create admin user if not exists
	if err := authService.EnsureAdminUser(); err != nil {
		logrus.Warnf("Failed to create admin user: %v", err)
	}

	// Daily summary digest
	reportService.Start()
	defer reportService.Stop()

	r := router.SetupRouter(authService, campaignService, templateService, reportService, excelService)

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

func configureLogging() {
	logLevel := getEnv("LOG_LEVEL", "info")
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, fmt.Sprintf("%d", defaultValue))
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}
