package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-gate-backend/internal/common/config"
	"token-gate-backend/internal/common/logger"
	connecthandler "token-gate-backend/internal/features/connect/handler"
	connectRepo "token-gate-backend/internal/features/connect/repository/redis"
	connectservice "token-gate-backend/internal/features/connect/service"
	memRepo "token-gate-backend/internal/features/membership/repository/postgres"
	memservice "token-gate-backend/internal/features/membership/service"
	apphttp "token-gate-backend/internal/http"
	"token-gate-backend/internal/platform/postgres"
	"token-gate-backend/internal/platform/redis"
	"token-gate-backend/internal/platform/telegram"
	"token-gate-backend/internal/service/dedust"
	"token-gate-backend/internal/service/tonbalance"
)

func main() {
	// Инициализируем конфигурацию
	cfg := config.Load()

	logger.Init("token-gate-backend", cfg.Debug)

	logger.Info().
		Bool("debug", cfg.Debug).
		Int64("threshold", cfg.Gating.ThresholdBalance).
		Msg("Starting token gate backend")

	// Инициализируем базу данных
	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	logger.Info().Msg("Database connection established")

	// Инициализируем Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	tg := telegram.NewClient(cfg.Telegram.BotToken)

	// Оракулы баланса и цены
	balanceSvc := tonbalance.NewService(cfg.Ton.TonAPIBase, cfg.Ton.TonAPIToken)
	priceSvc := dedust.NewService(cfg.Ton.DeDustBase, cfg.Gating.PriceMaxRetries)

	userRepository := memRepo.NewPostgresRepository(postgresClient.GetDB())
	lists := memservice.NewFileListChecker(cfg.Gating.OGListPath, cfg.Gating.BlacklistPath)
	machine := memservice.NewStateMachine(cfg.Gating.ThresholdBalance, cfg.Gating.OGThresholdBalance)
	notifier := memservice.NewAdminNotifier(tg, cfg.Telegram.AdminChannelID)
	manager := memservice.NewUserManager(tg, userRepository, notifier, cfg.Telegram.ChatID, cfg.Telegram.ChannelID)

	reconciler := memservice.NewReconciler(
		userRepository,
		balanceSvc,
		priceSvc,
		lists,
		machine,
		manager,
		notifier,
		tg,
		cfg.Ton.JettonAddr,
		cfg.Ton.JettonLPAddr,
		cfg.RefreshInterval(),
	)

	payloadRepository := connectRepo.NewRepository(redisClient)
	connectSvc := connectservice.NewService(
		payloadRepository,
		userRepository,
		balanceSvc,
		priceSvc,
		lists,
		manager,
		notifier,
		tg,
		cfg.Connect.ManifestDomain,
		cfg.Telegram.ChatID,
		cfg.Ton.JettonAddr,
		cfg.Ton.JettonLPAddr,
		cfg.Gating.ThresholdBalance,
		cfg.Gating.OGThresholdBalance,
	)

	logger.Info().Msg("Services initialized")

	botCtx, botCancel := context.WithCancel(context.Background())
	botHandler := connecthandler.NewHandler(tg, connectSvc, cfg.Connect.WebAppBase)
	go botHandler.Run(botCtx)

	reconciler.Start()

	server := apphttp.NewServer(cfg, postgresClient, redisClient, reconciler, connectSvc)
	server.Start()

	// Ждем сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	botCancel()
	reconciler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
