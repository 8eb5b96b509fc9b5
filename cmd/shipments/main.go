package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/config"
	"github.com/matheusmosca/order-fulfillment/internal/logger"
	"github.com/matheusmosca/order-fulfillment/internal/notifier"
	"github.com/matheusmosca/order-fulfillment/internal/postgres"
	"github.com/matheusmosca/order-fulfillment/internal/server"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
	"github.com/matheusmosca/order-fulfillment/services/shipments"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(shipments.ServiceName, os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.App.LogLevel, cfg.App.Name)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, cfg.App.Name, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Enabled)
	if err != nil {
		logg.Fatal("❌ Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logg.Warn("Error shutting down telemetry", zap.Error(err))
		}
	}()

	var repository shipments.ShipmentRepository
	switch cfg.Database.Driver {
	case "memory":
		repository = shipments.NewMemoryShipmentRepository()
		logg.Info("ℹ️ Using in-memory store")
	default:
		pool, err := postgres.Open(ctx, cfg.Database, shipments.Schema, logg)
		if err != nil {
			logg.Fatal("❌ Failed to initialize database", zap.Error(err))
		}
		defer pool.Close()
		repository = shipments.NewShipmentRepository(pool)
	}

	orderNotifier := notifier.New(cfg.Services.Orders, cfg.Notifier.Timeout, logg)
	useCase := shipments.NewShipmentUseCase(repository, orderNotifier, cfg.Shipping, logg)

	handler := shipments.NewShipmentHandler(useCase, otel.Tracer(shipments.ServiceName), logg)
	srv := server.New(cfg.Server.Port, shipments.NewRouter(handler))

	if err := server.Serve(ctx, srv, logg); err != nil {
		logg.Fatal("❌ Server failed", zap.Error(err))
	}
}
