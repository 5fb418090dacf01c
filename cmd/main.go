package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"

	"github.com/Dosada05/esports-booking/cache"
	"github.com/Dosada05/esports-booking/config"
	"github.com/Dosada05/esports-booking/db"
	"github.com/Dosada05/esports-booking/handlers"
	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/metrics"
	"github.com/Dosada05/esports-booking/middleware"
	"github.com/Dosada05/esports-booking/repositories"
	api "github.com/Dosada05/esports-booking/routes"
	"github.com/Dosada05/esports-booking/services"
	"github.com/Dosada05/esports-booking/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "esports-booking",
		Usage: "tournament booking API",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP server",
				Action: func(c *cli.Context) error {
					return serve(c.Context, logger)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations and exit",
				Action: func(c *cli.Context) error {
					return migrateOnly(logger)
				},
			},
			{
				Name:  "create-owner",
				Usage: "create the SUPER_ADMIN_EMAIL account or reset its password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Value: "Owner", Usage: "display name for a new account"},
					&cli.StringFlag{Name: "password", EnvVars: []string{"OWNER_PASSWORD"}, Required: true, Usage: "owner password"},
				},
				Action: func(c *cli.Context) error {
					return createOwner(c.Context, logger, c.String("name"), c.String("password"))
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func migrateOnly(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	version, err := db.Migrate(dbConn)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", slog.Uint64("version", uint64(version)))
	return nil
}

// createOwner - единственный способ получить аккаунт владельца: /auth/register этот email не принимает.
func createOwner(ctx context.Context, logger *slog.Logger, name, password string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	adminService := services.NewAdminService(
		repositories.NewPostgresAdminRepository(dbConn),
		repositories.NewPostgresUserRepository(dbConn),
		repositories.NewTransactor(dbConn),
		logger,
	)
	if _, err := adminService.EnsureOwner(ctx, cfg.SuperAdminEmail, name, password); err != nil {
		return fmt.Errorf("failed to create owner account: %w", err)
	}
	return nil
}

func serve(ctx context.Context, logger *slog.Logger) error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.AutoMigrate {
		version, err := db.Migrate(dbConn)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", slog.Uint64("version", uint64(version)))
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	cloudflareUploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Redis нужен только кешу лидерборда; без него все читается из Postgres.
	var redisClient cache.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, leaderboard cache disabled", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run(runCtx)
	logger.Info("WebSocket Hub started")

	appMetrics := metrics.New()

	// Инициализация репозиториев
	transactor := repositories.NewTransactor(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	adminRepo := repositories.NewPostgresAdminRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	bookingRepo := repositories.NewPostgresBookingRepository(dbConn)
	keyRepo := repositories.NewPostgresTransitionKeyRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	contactRepo := repositories.NewPostgresContactRepository(dbConn)
	settingsRepo := repositories.NewPostgresSettingsRepository(dbConn)
	leaderboardRepo := repositories.NewPostgresLeaderboardRepository(dbConn)
	blogRepo := repositories.NewPostgresBlogRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	accessService := services.NewAccessService(cfg.SuperAdminEmail, adminRepo)
	adminService := services.NewAdminService(adminRepo, userRepo, transactor, logger)
	authService := services.NewAuthService(userRepo, adminRepo, cfg.SuperAdminEmail, logger)
	notificationService := services.NewNotificationService(notificationRepo, bookingRepo, userRepo, wsHub, appMetrics, adminService, logger)
	bookingService := services.NewBookingService(
		bookingRepo,
		tournamentRepo,
		keyRepo,
		transactor,
		notificationService,
		cloudflareUploader,
		adminService,
		wsHub,
		appMetrics,
		logger,
	)
	tournamentService := services.NewTournamentService(
		tournamentRepo,
		bookingRepo,
		keyRepo,
		transactor,
		notificationService,
		cloudflareUploader,
		adminService,
		wsHub,
		appMetrics,
		logger,
	)
	contactService := services.NewContactService(contactRepo, transactor, notificationService, adminService, wsHub, logger)
	settingsService := services.NewSettingsService(settingsRepo, adminService, wsHub)
	leaderboardService := services.NewLeaderboardService(leaderboardRepo, redisClient, adminService, logger)
	blogService := services.NewBlogService(blogRepo, cloudflareUploader, adminService, logger)
	dashboardService := services.NewDashboardService(
		authService,
		bookingService,
		contactService,
		notificationService,
		bookingRepo,
		tournamentRepo,
		contactRepo,
		userRepo,
	)
	logger.Info("Services initialized")

	scheduler, err := services.NewScheduler(tournamentService, notificationService, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	// Инициализация обработчиков HTTP
	handlers.SetLogger(logger)
	h := api.Handlers{
		Auth:         handlers.NewAuthHandler(authService, accessService, cfg.JWTSecretKey),
		Tournament:   handlers.NewTournamentHandler(tournamentService),
		Booking:      handlers.NewBookingHandler(bookingService),
		Admin:        handlers.NewAdminHandler(adminService, notificationService),
		Contact:      handlers.NewContactHandler(contactService),
		Settings:     handlers.NewSettingsHandler(settingsService),
		Leaderboard:  handlers.NewLeaderboardHandler(leaderboardService),
		Blog:         handlers.NewBlogHandler(blogService),
		Dashboard:    handlers.NewDashboardHandler(dashboardService),
		Notification: handlers.NewNotificationHandler(notificationService),
		WebSocket:    handlers.NewWebSocketHandler(wsHub, tournamentService, accessService, cfg.CORSAllowedOrigins),
	}
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, h, api.Options{
		JWTSecret:      cfg.JWTSecretKey,
		Access:         accessService,
		Metrics:        appMetrics,
		RateLimiter:    middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}

	// Hub закрывает оставшиеся WebSocket-соединения.
	cancelRun()
	return nil
}
