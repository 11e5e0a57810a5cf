package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/adapter/bridge"
	"github.com/gridwatt/csms-core/internal/adapter/cache"
	"github.com/gridwatt/csms-core/internal/adapter/http/fiber/handlers"
	"github.com/gridwatt/csms-core/internal/adapter/http/fiber/middleware"
	v16 "github.com/gridwatt/csms-core/internal/adapter/ocpp/v16"
	"github.com/gridwatt/csms-core/internal/adapter/queue"
	"github.com/gridwatt/csms-core/internal/adapter/storage/postgres"
	wsAdapter "github.com/gridwatt/csms-core/internal/adapter/websocket"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/internal/service/account"
	"github.com/gridwatt/csms-core/internal/service/chargepoint"
	"github.com/gridwatt/csms-core/internal/service/events"
	"github.com/gridwatt/csms-core/internal/service/health"
	"github.com/gridwatt/csms-core/internal/service/ingest"
	"github.com/gridwatt/csms-core/internal/service/notify"
	"github.com/gridwatt/csms-core/internal/service/session"
	"github.com/gridwatt/csms-core/pkg/clock"
	"github.com/gridwatt/csms-core/pkg/config"
)

const (
	serviceName    = "csms-core"
	serviceVersion = "v1.0.0"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting CSMS core",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, serviceVersion, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	db, err := postgres.NewConnection(cfg.Database.URL, cfg.Database.LogQueries, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Redis is optional; the registry works without its snapshot cache.
	var appCache ports.Cache
	if cfg.Redis.Enabled {
		appCache, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to local cache", zap.Error(err))
			appCache = cache.NewLocalCache(time.Minute, logger)
		}
	} else {
		appCache = cache.NewLocalCache(time.Minute, logger)
	}
	defer appCache.Close()

	messageQueue := newMessageQueue(cfg, logger)
	if messageQueue != nil {
		defer messageQueue.Close()
	}

	// Repositories
	chargePointRepo := postgres.NewChargePointRepository(db, logger)
	sessionRepo := postgres.NewSessionRepository(db, logger)
	transactionRepo := postgres.NewTransactionRepository(db, logger)
	serviceRepo := postgres.NewServiceRepository(db, logger)
	accountRepo := postgres.NewAccountRepository(db, logger)
	outboxRepo := postgres.NewOutboxRepository(db, logger)
	txManager := postgres.NewTxManager(db)

	// Core services
	clk := clock.System()
	ids := clock.NewIDGenerator()

	recorder := events.NewRecorder(outboxRepo, clk)
	resolver := account.NewResolver(accountRepo, logger)
	chargePointService := chargepoint.NewService(chargePointRepo, txManager, recorder, appCache, clk, logger)
	sessionService := session.NewService(
		sessionRepo, transactionRepo, serviceRepo, accountRepo,
		resolver, chargePointService, txManager, recorder, clk, ids, logger,
	)
	ingestService := ingest.NewService(chargePointService, logger)
	bridgeClient := bridge.NewClient(cfg.Bridge.BaseURL, cfg.Bridge.APIKey, cfg.Bridge.Timeout, logger)
	dispatcher := v16.NewHandlers(chargePointService, sessionService, clk, logger)

	// Real-time fan-out
	wsHub := wsAdapter.NewHub(logger)
	go wsHub.Run()

	outboxDispatcher := events.NewDispatcher(outboxRepo, messageQueue, wsHub, clk, cfg.Outbox.DrainInterval, logger)
	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go outboxDispatcher.Run(rootCtx)

	if cfg.Watchdog.Enabled {
		watchdog := session.NewWatchdog(
			sessionRepo, accountRepo, serviceRepo, sessionService,
			clk, cfg.Watchdog.Interval, logger,
		)
		go watchdog.Run(rootCtx)
	}

	if cfg.Notification.Email.Enabled && messageQueue != nil {
		mailer := notify.NewSendGridMailer(
			cfg.Notification.Email.APIKey,
			cfg.Notification.Email.From,
			cfg.Notification.Email.FromName,
		)
		notifier := notify.NewService(mailer, resolver, logger)
		if err := notifier.Subscribe(messageQueue); err != nil {
			logger.Warn("Failed to subscribe receipt mailer", zap.Error(err))
		}
	}

	// OCPP websocket transport
	ocppServer := v16.NewServer(dispatcher, logger)
	if cfg.OCPP.WebSocketEnabled {
		go func() {
			if err := ocppServer.Start(cfg.OCPP.Port); err != nil {
				logger.Fatal("OCPP server failed", zap.Error(err))
			}
		}()
	}

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}

	healthService := health.NewService(serviceVersion, db, appCache, logger)
	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
			handler(c.Context())
			return nil
		})
	}

	registerRoutes(app, cfg, dispatcher, ingestService, chargePointService, sessionService, transactionRepo, bridgeClient, logger)

	// Event stream websocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/updates", websocket.New(func(c *websocket.Conn) {
		channels := []string{wsAdapter.ChannelGlobal}
		if ref := c.Query("account"); ref != "" {
			channels = append(channels, wsAdapter.AccountChannel(ref))
		}
		if c.Query("admin") == "true" {
			channels = append(channels, wsAdapter.ChannelAdmin)
		}
		wsHub.AddClient(c, channels...)
	}))

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if cfg.OCPP.WebSocketEnabled {
		ocppServer.Stop()
	}

	logger.Info("Server exited gracefully")
}

// newMessageQueue picks NATS first, RabbitMQ second. Events still reach the
// websocket hub when neither broker is configured.
func newMessageQueue(cfg *config.Config, logger *zap.Logger) queue.MessageQueue {
	if cfg.NATS.Enabled {
		mq, err := queue.NewNATSQueue(cfg.NATS.URL, logger)
		if err == nil {
			return mq
		}
		logger.Warn("NATS unavailable", zap.Error(err))
	}
	if cfg.RabbitMQ.Enabled {
		mq, err := queue.NewRabbitMQQueue(cfg.RabbitMQ.URL, logger)
		if err == nil {
			return mq
		}
		logger.Warn("RabbitMQ unavailable", zap.Error(err))
	}
	logger.Info("No message broker configured, events go to websocket only")
	return nil
}

func registerRoutes(
	app *fiber.App,
	cfg *config.Config,
	dispatcher *v16.Handlers,
	ingestService ports.LogIngestService,
	chargePointService ports.ChargePointService,
	sessionService ports.SessionService,
	transactionRepo ports.TransactionRepository,
	bridgeClient ports.BridgeClient,
	logger *zap.Logger,
) {
	v1 := app.Group("/api/v1")

	ocppHandler := handlers.NewOCPPHandler(dispatcher, logger)
	v1.Post("/ocpp/messages", ocppHandler.HandleCall)

	logHandler := handlers.NewLogHandler(ingestService, logger)
	v1.Post("/logs/ingest", logHandler.Ingest)

	cpHandler := handlers.NewChargePointHandler(chargePointService, logger)
	v1.Get("/chargepoints", cpHandler.List)
	v1.Get("/chargepoints/:identifier", cpHandler.Get)
	v1.Post("/chargepoints/status", cpHandler.PushStatus)

	sessionHandler := handlers.NewSessionHandler(sessionService, logger)
	v1.Post("/sessions", sessionHandler.Start)
	v1.Get("/sessions/live", sessionHandler.ListLive)
	v1.Get("/sessions/:id", sessionHandler.Get)
	v1.Post("/sessions/:id/pause", sessionHandler.Pause)
	v1.Post("/sessions/:id/resume", sessionHandler.Resume)
	v1.Post("/sessions/:id/stop", sessionHandler.Stop)
	v1.Post("/sessions/:id/force-stop", sessionHandler.ForceStop)
	v1.Get("/accounts/:ref/session", sessionHandler.GetLiveByAccount)
	v1.Get("/accounts/:ref/sessions", sessionHandler.GetHistoryByAccount)

	transactionHandler := handlers.NewTransactionHandler(transactionRepo, logger)
	v1.Get("/transactions/:reference", transactionHandler.GetByReference)
	v1.Get("/sessions/:id/transaction", transactionHandler.GetBySession)
	v1.Get("/accounts/:ref/transactions", transactionHandler.ListByAccount)

	commands := v1.Group("/commands")
	if cfg.CircuitBreaker.Enabled {
		commands.Use(middleware.CircuitBreaker("bridge-commands", logger))
	}
	commandHandler := handlers.NewCommandHandler(bridgeClient, logger)
	commands.Post("/remote-start", commandHandler.RemoteStart)
	commands.Post("/remote-stop", commandHandler.RemoteStop)
}
