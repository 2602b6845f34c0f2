package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/broker"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/gateway"
	"github.com/mbeoliero/ringlink/internal/handler"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/internal/router"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/internal/telephony"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/idgen"
	"github.com/mbeoliero/ringlink/pkg/secure"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	configPath := "config/config.yaml"
	if v := os.Getenv("RINGLINK_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Numbers are sealed at rest when a key is configured
	if cfg.Secure.NumberKey != "" {
		cipher, err := secure.NewCipherFromBase64(cfg.Secure.NumberKey)
		if err != nil {
			log.CtxError(ctx, "invalid number key: %v", err)
			panic(err)
		}
		repository.RegisterSealedSerializer(cipher)
	} else {
		log.CtxWarn(ctx, "secure.number_key is empty, phone numbers are stored in plain text")
	}

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	if cfg.Server.AutoMigrate {
		if err := repos.AutoMigrate(ctx); err != nil {
			log.CtxError(ctx, "auto migrate failed: %v", err)
			panic(err)
		}
	}

	// Provider and ids
	ytx, err := telephony.NewYTXClient(cfg.YTX, cfg.Phone.DefaultRegion)
	if err != nil {
		log.CtxError(ctx, "failed to create call gateway: %v", err)
		panic(err)
	}
	ids, err := idgen.NewSonyflakeGenerator(cfg.Server.MachineId)
	if err != nil {
		log.CtxError(ctx, "failed to create id generator: %v", err)
		panic(err)
	}

	// Initialize services
	ledger := service.NewLedgerService(repos, repos.Unread, cfg.Call)
	billing := service.NewBillingService(repos)
	reconciler := service.NewStatusReconciler(repos, ytx, ledger, billing, cfg.Call, cfg.Phone.DefaultRegion)
	calls := service.NewCallService(repos, ledger, reconciler, ytx, ids)
	profiles := service.NewProfileService(repos, cfg.Phone.DefaultRegion)
	poller := service.NewPoller(repos, reconciler, cfg.Call)

	// Event broker
	if cfg.RabbitMQ.URL != "" {
		publisher, err := broker.NewPublisher(ctx, cfg.RabbitMQ, 5)
		if err != nil {
			log.CtxError(ctx, "failed to connect rabbitmq: %v", err)
			panic(err)
		}
		defer publisher.Close()
		billing.SetPublisher(publisher)
		reconciler.SetPublisher(publisher)
	} else {
		log.CtxWarn(ctx, "rabbitmq.url is empty, domain events are not published")
	}

	// Initialize WebSocket server
	wsServer := gateway.NewWsServer(cfg, repos.Redis, ledger)
	ledger.SetNotifier(wsServer)
	billing.SetNotifier(wsServer)
	wsServer.Run(ctx)

	pushServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.WSPort),
		Handler:           wsServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.CtxInfo(ctx, "push server starting on port %d", cfg.Server.WSPort)
		if err := pushServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.CtxError(ctx, "push server error: %v", err)
		}
	}()

	go poller.Run(ctx)

	// Initialize handlers
	handlers := &router.Handlers{
		Contact: handler.NewContactHandler(ledger),
		Message: handler.NewMessageHandler(ledger),
		Call:    handler.NewCallHandler(calls, reconciler, ledger),
		Profile: handler.NewProfileHandler(profiles),
		Webhook: handler.NewWebhookHandler(reconciler),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, cfg, handlers)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	// Graceful shutdown
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(shutdownCtx, "server shutdown error: %v", err)
	}
	if err := pushServer.Shutdown(shutdownCtx); err != nil {
		log.CtxError(shutdownCtx, "push server shutdown error: %v", err)
	}

	log.CtxInfo(shutdownCtx, "server stopped")
}
