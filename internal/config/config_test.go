package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("NATS.URL = %v, want default", cfg.NATS.URL)
	}
	if cfg.Redis.URL != "redis://localhost:6379" {
		t.Errorf("Redis.URL = %v, want default", cfg.Redis.URL)
	}
	if cfg.CDC.ReplicationSlot != "ssmd_cdc" {
		t.Errorf("CDC.ReplicationSlot = %v, want ssmd_cdc", cfg.CDC.ReplicationSlot)
	}
	if cfg.CDC.PublicationName != "ssmd_cdc_pub" {
		t.Errorf("CDC.PublicationName = %v, want ssmd_cdc_pub", cfg.CDC.PublicationName)
	}
	if cfg.NATS.StreamName != "SECMASTER_CDC" {
		t.Errorf("NATS.StreamName = %v, want SECMASTER_CDC", cfg.NATS.StreamName)
	}
	if cfg.NATS.ConsumerName != "ssmd-cache" {
		t.Errorf("NATS.ConsumerName = %v, want ssmd-cache", cfg.NATS.ConsumerName)
	}
	if cfg.CDC.PollInterval != 100*time.Millisecond {
		t.Errorf("CDC.PollInterval = %v, want 100ms", cfg.CDC.PollInterval)
	}
	want := []string{"events", "markets", "series_fees"}
	if len(cfg.CDC.Tables) != len(want) {
		t.Fatalf("CDC.Tables = %v, want %v", cfg.CDC.Tables, want)
	}
	for i, tbl := range want {
		if cfg.CDC.Tables[i] != tbl {
			t.Errorf("CDC.Tables[%d] = %v, want %v", i, cfg.CDC.Tables[i], tbl)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://u:p@db.example.com:5432/secmaster")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("REPLICATION_SLOT", "custom_slot")
	os.Setenv("CDC_TABLES", "markets, events")
	os.Setenv("POLL_INTERVAL_MS", "250")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("NATS_URL")
		os.Unsetenv("REPLICATION_SLOT")
		os.Unsetenv("CDC_TABLES")
		os.Unsetenv("POLL_INTERVAL_MS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://u:p@db.example.com:5432/secmaster" {
		t.Errorf("Database.URL = %v", cfg.Database.URL)
	}
	if cfg.NATS.URL != "nats://nats.example.com:4222" {
		t.Errorf("NATS.URL = %v", cfg.NATS.URL)
	}
	if cfg.CDC.ReplicationSlot != "custom_slot" {
		t.Errorf("CDC.ReplicationSlot = %v", cfg.CDC.ReplicationSlot)
	}
	if cfg.CDC.PollInterval != 250*time.Millisecond {
		t.Errorf("CDC.PollInterval = %v, want 250ms", cfg.CDC.PollInterval)
	}
	want := []string{"markets", "events"}
	if len(cfg.CDC.Tables) != len(want) || cfg.CDC.Tables[0] != want[0] || cfg.CDC.Tables[1] != want[1] {
		t.Errorf("CDC.Tables = %v, want %v", cfg.CDC.Tables, want)
	}
}

func TestGetSliceEnvEmptyFallsBackToDefault(t *testing.T) {
	os.Setenv("CDC_TABLES", "")
	defer os.Unsetenv("CDC_TABLES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.CDC.Tables) != 3 {
		t.Errorf("CDC.Tables = %v, want 3 default entries", cfg.CDC.Tables)
	}
}
