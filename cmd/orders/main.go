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
	"github.com/matheusmosca/order-fulfillment/internal/postgres"
	"github.com/matheusmosca/order-fulfillment/internal/redisx"
	"github.com/matheusmosca/order-fulfillment/internal/server"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
	"github.com/matheusmosca/order-fulfillment/services/orders"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(orders.ServiceName, os.Getenv("CONFIG_FILE"))
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

	var repository orders.Repository
	switch cfg.Database.Driver {
	case "memory":
		repository = orders.NewMemoryOrderRepository()
		logg.Info("ℹ️ Using in-memory store")
	default:
		pool, err := postgres.Open(ctx, cfg.Database, orders.Schema, logg)
		if err != nil {
			logg.Fatal("❌ Failed to initialize database", zap.Error(err))
		}
		defer pool.Close()
		repository = orders.NewOrderRepository(pool)
	}

	customers := orders.NewCustomerClient(cfg.Services.Customers, cfg.Collaborators.Timeout)
	catalog := orders.NewCatalogClient(cfg.Services.Products, cfg.Collaborators.Timeout)
	useCase := orders.NewOrderUseCase(repository, customers, catalog, cfg.Orders, logg)

	if cfg.Redis.Addr != "" {
		rdb := redisx.New(cfg.Redis)
		defer rdb.Close()
		useCase.WithStatusCache(redisx.NewStatusCache(rdb, cfg.Redis.StatusTTL))
		logg.Info("✅ Order status cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	handler := orders.NewOrderHandler(useCase, otel.Tracer(orders.ServiceName), logg)
	srv := server.New(cfg.Server.Port, orders.NewRouter(handler))

	if err := server.Serve(ctx, srv, logg); err != nil {
		logg.Fatal("❌ Server failed", zap.Error(err))
	}
}
