package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thankatech/backend/internal/config"
	"github.com/thankatech/backend/internal/db"
	"github.com/thankatech/backend/internal/email"
	httpHandlers "github.com/thankatech/backend/internal/http/handlers"
	httpRouter "github.com/thankatech/backend/internal/http/router"
	"github.com/thankatech/backend/internal/logger"
	"github.com/thankatech/backend/internal/repository"
	"github.com/thankatech/backend/internal/service"
	"github.com/thankatech/backend/internal/storage"
	"github.com/thankatech/backend/internal/stripe"
	"github.com/thankatech/backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Внешние клиенты. Без ключей сервер стартует, платёжные маршруты отвечают 503.
	var emailClient *email.Client
	if cfg.EmailAPIKey != "" {
		emailClient = email.NewClient(cfg.EmailAPIBaseURL, cfg.EmailAPIKey, cfg.EmailFrom)
	} else {
		log.Printf("main: EMAIL_API_KEY не задан, отправка писем отключена")
	}

	var checkoutClient service.CheckoutClient
	var paymentClient service.PaymentIntentClient
	var connectClient service.ConnectClient
	if cfg.StripeConfigured() {
		stripeClient := stripe.NewClient(cfg.StripeSecretKey)
		checkoutClient = stripeClient
		paymentClient = stripeClient
		connectClient = stripeClient
	} else {
		log.Printf("main: STRIPE_SECRET_KEY не задан, платежи отключены")
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	technicianRepo := repository.NewTechnicianRepository(dbConn)
	clientRepo := repository.NewClientRepository(dbConn)
	tipRepo := repository.NewTipRepository(dbConn)
	tokenRepo := repository.NewTokenRepository(dbConn)
	payoutRepo := repository.NewPayoutRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	fees := service.NewFeeCalculator(cfg.PlatformFeePercent, cfg.PlatformFeeFixed)
	mailer := service.NewMailer(emailClient, cfg.BaseURL)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	authService := service.NewAuthService(userRepo, technicianRepo, clientRepo, tokenManager, mailer)
	technicianService := service.NewTechnicianService(technicianRepo, userRepo, mediaRepo, photoStorage)
	tipService := service.NewTipService(tipRepo, technicianRepo, userRepo, paymentClient, fees, notificationService, mailer)
	ledgerService := service.NewLedgerService(tokenRepo, userRepo, checkoutClient, notificationService, mailer, cfg.BaseURL)
	payoutService := service.NewPayoutService(payoutRepo, technicianRepo, userRepo, connectClient, fees, notificationService, mailer, cfg.BaseURL)
	webhookService := service.NewWebhookService(cfg.StripeWebhookSecrets, ledgerService, tipService, payoutService)
	adminService := service.NewAdminService(userRepo, tipService, payoutService)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	technicianHandler := httpHandlers.NewTechnicianHandler(technicianService)
	tipHandler := httpHandlers.NewTipHandler(tipService)
	tokenHandler := httpHandlers.NewTokenHandler(ledgerService)
	payoutHandler := httpHandlers.NewPayoutHandler(payoutService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	webhookHandler := httpHandlers.NewWebhookHandler(webhookService)
	adminHandler := httpHandlers.NewAdminHandler(adminService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		technicianHandler,
		tipHandler,
		tokenHandler,
		payoutHandler,
		notificationHandler,
		webhookHandler,
		adminHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
