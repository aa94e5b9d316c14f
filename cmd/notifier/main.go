package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/config"
	kafkax "github.com/arpit8955/ecommerce/internal/kafka"
	"github.com/arpit8955/ecommerce/internal/logger"
	"github.com/arpit8955/ecommerce/internal/notifier"
	"github.com/arpit8955/ecommerce/internal/observability"
	"github.com/arpit8955/ecommerce/internal/orders"
	"github.com/arpit8955/ecommerce/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.ServiceName += "-notifier"

	if err := logger.Init(cfg.IsDev()); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L().With(zap.String("service", cfg.ServiceName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg, log)
	if err != nil {
		log.Fatal("tracing setup", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{
		Dedup:  redisx.NewDedup(rdb, "notifier"),
		Mailer: notifier.LogMailer{Log: log},
		Log:    log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderPaid, cfg.NotifierWorkers, log)
	if err := cons.Start(ctx, svc.HandleOrderPaid); err != nil {
		log.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
