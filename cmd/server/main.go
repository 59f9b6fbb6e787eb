package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/jobmarket-backend/internal/config"
	"github.com/ignatzorin/jobmarket-backend/internal/db"
	"github.com/ignatzorin/jobmarket-backend/internal/gateway"
	"github.com/ignatzorin/jobmarket-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/jobmarket-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/jobmarket-backend/internal/http/router"
	"github.com/ignatzorin/jobmarket-backend/internal/logger"
	"github.com/ignatzorin/jobmarket-backend/internal/repository"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
	"github.com/ignatzorin/jobmarket-backend/internal/sweeper"
	"github.com/ignatzorin/jobmarket-backend/internal/ws"
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
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
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

	platformID, err := uuid.Parse(cfg.PlatformUserID)
	if err != nil {
		log.Fatalf("main: некорректный PLATFORM_USER_ID: %v", err)
	}

	// Вспомогательная инфраструктура.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	recovery := goroutine.NewRecoveryHandler(logger.Log)
	gw := gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	offerRepo := repository.NewOfferRepository(dbConn)
	txnRepo := repository.NewTransactionRepository(dbConn)
	engagementRepo := repository.NewEngagementRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Кошелёк платформы должен существовать до первого accept.
	if _, err := walletRepo.EnsureWallet(ctx, platformID); err != nil {
		log.Fatalf("main: не удалось создать кошелёк платформы: %v", err)
	}

	// Вебсокеты и уведомления.
	hub := ws.NewHub(ws.NewMemoryPresence())
	notificationService := service.NewNotificationService(notificationRepo, hub, recovery)

	// Сервисы.
	fees := service.FeeSchedule{PlatformRate: cfg.PlatformFeeRate, ServiceRate: cfg.ServiceFeeRate}
	authService := service.NewAuthService(userRepo, walletRepo, tokenManager)
	offerService := service.NewOfferService(offerRepo, engagementRepo, jobRepo, notificationService, fees, platformID, cfg.OfferTTL)
	walletService := service.NewWalletService(walletRepo, txnRepo, gw, cfg.GatewayTimeout, cfg.MinWithdrawalAmount, cfg.RetryAttemptsCap)
	reconcileService := service.NewReconcileService(txnRepo, gw, notificationService)
	engagementService := service.NewEngagementService(engagementRepo, jobRepo, notificationService)
	jobService := service.NewJobService(jobRepo)

	// Фоновые задачи.
	scheduler := sweeper.NewTickerScheduler(recovery)
	sweeper.NewExpirationSweeper(offerService, cfg.ExpireSweepPeriod, 100).Start(ctx, scheduler)
	sweeper.NewRetrySweeper(walletService, cfg.RetrySweepPeriod, 50).Start(ctx, scheduler)

	// HTTP хэндлеры.
	h := httpRouter.Handlers{
		Auth:         httpHandlers.NewAuthHandler(authService),
		Job:          httpHandlers.NewJobHandler(jobService),
		Engagement:   httpHandlers.NewEngagementHandler(engagementService),
		Offer:        httpHandlers.NewOfferHandler(offerService),
		Wallet:       httpHandlers.NewWalletHandler(walletService, userRepo),
		Webhook:      httpHandlers.NewWebhookHandler(reconcileService),
		Notification: httpHandlers.NewNotificationHandler(notificationService),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:       httpHandlers.NewHealthHandler(dbConn),
		Admin:        httpHandlers.NewAdminHandler(walletService),
	}

	engine := httpRouter.SetupRouter(cfg, h, tokenManager)

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
