package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/config"
	"gitlab.com/chathy/api/chathy-command-engine/internal/fallback"
	"gitlab.com/chathy/api/chathy-command-engine/internal/healthcheck"
	"gitlab.com/chathy/api/chathy-command-engine/internal/httpapi"
	"gitlab.com/chathy/api/chathy-command-engine/internal/jetstream"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/observer"
	"gitlab.com/chathy/api/chathy-command-engine/internal/parser"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/internal/usecase"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(cfg.Metrics.Enabled)

	logger.Log.Info("Starting Chathy command engine",
		zap.String("environment", cfg.Environment),
		zap.Int("api_port", cfg.Server.Port),
	)

	// In-memory business state doubles as the tenant directory.
	stateStore := storage.NewMemoryStateStore()
	if cfg.Environment == "development" {
		seedDemoTenant(stateStore)
	}

	auditRepo, err := initAuditRepo(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize audit repository", zap.Error(err))
	}

	var jsClient jetstream.ClientInterface
	if cfg.NATS.Enabled {
		client, err := jetstream.NewClient(cfg.NATS.URL)
		if err != nil {
			logger.Log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		jsClient = client
	}

	auditService := usecase.NewAuditService(auditRepo, jsClient, cfg.NATS.AuditSubject)
	if cfg.NATS.Enabled {
		maxAge := time.Duration(cfg.NATS.MaxAgeDays) * 24 * time.Hour
		if err := auditService.SetupStream(context.Background(), cfg.NATS.AuditStream, maxAge); err != nil {
			logger.Log.Fatal("Failed to set up audit stream", zap.Error(err))
		}
	}

	composer := channel.NewComposer()
	// Adapters fall back to log-only delivery until transport clients are wired.
	registry := channel.NewRegistry(
		channel.NewSMSAdapter(nil),
		channel.NewTelegramAdapter(nil),
		channel.NewWebchatAdapter(nil),
	)

	var bridge *fallback.Bridge
	if cfg.Fallback.URL != "" {
		bridge = fallback.NewBridge(cfg.Fallback.URL, cfg.Fallback.ChatPath, cfg.Fallback.ClearedPath,
			cfg.Fallback.Timeout, cfg.Fallback.MaxRetries, cfg.Fallback.RetryDelay)
	}

	resolver := usecase.NewTenantResolver(stateStore)
	executor := usecase.NewExecutor(stateStore, auditService, composer)
	dedupe := usecase.NewDedupeCache(cfg.Dedupe.Window, cfg.Dedupe.SweepInterval)
	processor := usecase.NewProcessor(resolver, stateStore, parser.New(), executor,
		bridge, auditService, dedupe, composer, registry, cfg.Pipeline.Deadline)

	worker, err := usecase.NewMessageWorker(cfg.WorkerPool, processor, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize message worker pool", zap.Error(err))
	}

	apiHandler := httpapi.NewHandler(registry, worker, stateStore, stateStore, auditService)
	apiServer := httpapi.NewServer(cfg.Server.Port, apiHandler)

	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Metrics.Port), logger.Log, nil)
	if cfg.Metrics.Enabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Metrics.Port))
	}
	healthServer.Start()

	utils.SafeGo(func() {
		if err := apiServer.Start(); err != nil {
			logger.Log.Fatal("API server failed", zap.Error(err))
		}
	}, nil)

	logger.Log.Info("Webhook endpoints available",
		zap.String("sms", fmt.Sprintf("http://localhost:%d/webhook/sms", cfg.Server.Port)),
		zap.String("telegram", fmt.Sprintf("http://localhost:%d/webhook/telegram", cfg.Server.Port)),
		zap.String("webchat", fmt.Sprintf("http://localhost:%d/webhook/webchat", cfg.Server.Port)),
	)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(3)

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping API server")
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] API server shutdown error", zap.Error(err))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping API server",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping message worker pool")
		worker.Stop()
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping message worker",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Health server shutdown error", zap.Error(err))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health server",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("Graceful shutdown complete")
	case <-shutdownCtx.Done():
		logger.Log.Warn("Graceful shutdown timed out")
	}

	dedupe.Close()
	if err := auditRepo.Close(context.Background()); err != nil {
		logger.Log.Error("Failed to close audit repository", zap.Error(err))
	}
	if jsClient != nil {
		jsClient.Close()
	}
}

// initAuditRepo picks the durable ledger when a DSN is configured and the
// in-memory one otherwise.
func initAuditRepo(cfg *config.Config) (storage.AuditRepo, error) {
	if cfg.Database.PostgresDSN == "" {
		logger.Log.Info("No Postgres DSN configured, using in-memory audit ledger")
		return storage.NewMemoryAuditRepo(), nil
	}
	return storage.NewPostgresAuditRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
}

// seedDemoTenant registers the demo spa so local webhooks resolve without an
// onboarding flow.
func seedDemoTenant(store *storage.MemoryStateStore) {
	profile := &model.TenantProfile{
		ID:             "biz_1",
		BusinessName:   "Serenity Spa & Wellness",
		BusinessType:   "spa",
		Phone:          "+15551234567",
		TelegramUserID: "100200300",
		WidgetToken:    "demo-widget-token",
		Onboarded:      true,
		CreatedAt:      utils.Now(),
	}
	ctx := context.Background()
	if err := store.Save(ctx, profile); err != nil {
		logger.Log.Warn("Failed to seed demo tenant profile", zap.Error(err))
		return
	}
	if err := store.CreateTenant(ctx, profile.ID, model.SpaFixtureState()); err != nil {
		logger.Log.Warn("Failed to seed demo tenant state", zap.Error(err))
		return
	}
	logger.Log.Info("Seeded demo tenant", zap.String("tenant_id", profile.ID))
}
