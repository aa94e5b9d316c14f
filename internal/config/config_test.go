package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RESERVATION_TTL", "")
	t.Setenv("REAPER_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	if cfg.ReservationTTL != 15*time.Minute {
		t.Fatalf("expected ttl=15m, got %s", cfg.ReservationTTL)
	}
	if cfg.ReaperInterval != time.Minute {
		t.Fatalf("expected interval=1m, got %s", cfg.ReaperInterval)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "kafka:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RESERVATION_TTL", "30s")
	t.Setenv("REAPER_BATCH", "10")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2,,")
	t.Setenv("ENV", "development")

	cfg := Load()
	if cfg.ReservationTTL != 30*time.Second {
		t.Fatalf("expected ttl=30s, got %s", cfg.ReservationTTL)
	}
	if cfg.ReaperBatch != 10 {
		t.Fatalf("expected batch=10, got %d", cfg.ReaperBatch)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:2" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if !cfg.IsDev() {
		t.Fatal("expected IsDev=true")
	}
}

func TestLoad_InvalidFallsBack(t *testing.T) {
	t.Setenv("REAPER_INTERVAL", "soon")
	t.Setenv("TX_MAX_RETRIES", "-1")

	cfg := Load()
	if cfg.ReaperInterval != time.Minute {
		t.Fatalf("expected fallback interval, got %s", cfg.ReaperInterval)
	}
	if cfg.TxMaxRetries != 3 {
		t.Fatalf("expected fallback retries=3, got %d", cfg.TxMaxRetries)
	}
}
