package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/craftlane/craftlane-orders-service/internal/clients"
	"github.com/craftlane/craftlane-orders-service/internal/config"
	"github.com/craftlane/craftlane-orders-service/internal/events"
	"github.com/craftlane/craftlane-orders-service/internal/gateway"
	"github.com/craftlane/craftlane-orders-service/internal/handlers"
	"github.com/craftlane/craftlane-orders-service/internal/lifecycle"
	"github.com/craftlane/craftlane-orders-service/internal/logging"
	"github.com/craftlane/craftlane-orders-service/internal/repository"
	"github.com/craftlane/craftlane-orders-service/internal/server"
	"github.com/craftlane/craftlane-orders-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	logger := logging.New("orders-service")
	defer logger.Sync()

	logger.Info("Starting orders-service", zap.Int("port", cfg.Server.Port))

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	store := repository.NewPostgresOrderStore(db, logger)

	var cache repository.OrderCache = repository.NoopOrderCache{}
	if cfg.Features.EnableOrderCaching {
		cache = repository.NewRedisOrderCache(cfg.Redis, logger)
	}

	registry := gateway.NewRegistry(logger,
		gateway.NewStripeGateway(cfg.Stripe, cfg.Currency, logger),
		gateway.NewPayPalGateway(cfg.PayPal, cfg.Currency, logger),
		gateway.NewWeChatGateway(cfg.WeChat, cfg.Currency, logger),
		gateway.NewAlipayGateway(cfg.Alipay, cfg.Currency, logger),
	)

	controller := lifecycle.NewController(store, logger)

	publisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	userClient := clients.NewHTTPUserClient(cfg.UserService, logger)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService, logger)

	orderService := service.NewOrderService(store, cache, controller, publisher, cfg.Currency, logger)
	paymentService := service.NewPaymentService(registry, store, cache, controller, publisher, cfg.Currency, logger)

	h := handlers.NewHandlers(orderService, paymentService, cfg, logger)
	srv := server.New(h, cfg)

	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Strings("payment_methods", registry.SupportedMethods()),
		)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	var consumer *events.NotificationConsumer
	if cfg.Features.EnableOrderEvents {
		consumer = events.NewNotificationConsumer(cfg.Kafka, store, userClient, notificationClient, logger)
		go func() {
			if err := consumer.Start(context.Background()); err != nil && err != context.Canceled {
				logger.Error("Notification consumer failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name),
	)

	return db, nil
}
