package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/config"
	"github.com/arpit8955/ecommerce/internal/logger"
	"github.com/arpit8955/ecommerce/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := logger.Init(cfg.IsDev()); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("schema up to date")
}
