package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arpit8955/ecommerce/internal/config"
	"github.com/arpit8955/ecommerce/internal/httpx"
	kafkax "github.com/arpit8955/ecommerce/internal/kafka"
	"github.com/arpit8955/ecommerce/internal/logger"
	"github.com/arpit8955/ecommerce/internal/observability"
	"github.com/arpit8955/ecommerce/internal/orders"
	"github.com/arpit8955/ecommerce/internal/postgres"
	"github.com/arpit8955/ecommerce/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

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

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		store = orders.NewMemoryStore()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		store = orders.NewPGStore(db)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unreachable, cache and reaper lock degraded", zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(context.Background())

	svc := orders.NewService(store, log,
		orders.WithPublisher(kafkax.NewEventPublisher(prod, log)),
		orders.WithCache(redisx.NewOrderCache(rdb, log)),
		orders.WithReservationTTL(cfg.ReservationTTL),
		orders.WithMaxRetries(cfg.TxMaxRetries),
		orders.WithProducerName(cfg.ServiceName),
	)
	reaper := orders.NewReaper(svc, log,
		orders.WithInterval(cfg.ReaperInterval),
		orders.WithBatchSize(cfg.ReaperBatch),
		orders.WithLocker(redisx.NewLocker(rdb)),
	)

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{Svc: svc, Auth: httpx.NewAuthenticator(cfg.JWTSecret), Log: log}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reaper.Stop()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}

	prod.Close()      // stop menerima pesan -> flush & close writer
	prod.WaitClosed() // drain

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
