package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithPath("nonexistent.env")
	if err != nil {
		t.Fatalf("LoadWithPath() error: %v", err)
	}

	if cfg.App.Name != "order-saga" {
		t.Errorf("App.Name = %s, want order-saga", cfg.App.Name)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v, want [localhost:9092]", cfg.Kafka.Brokers)
	}
	if cfg.Saga.Store != "postgres" {
		t.Errorf("Saga.Store = %s, want postgres", cfg.Saga.Store)
	}
	if cfg.Outbox.MaxRetries != 5 {
		t.Errorf("Outbox.MaxRetries = %d, want 5", cfg.Outbox.MaxRetries)
	}
	if cfg.Inventory.Ledger != "postgres" {
		t.Errorf("Inventory.Ledger = %s, want postgres", cfg.Inventory.Ledger)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "secret",
		DBName:   "orders",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=app password=secret dbname=orders sslmode=require"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestValidateRejectsUnknownSagaStore(t *testing.T) {
	cfg, err := LoadWithPath("nonexistent.env")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Saga.Store = "cassandra"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown saga store")
	}
}

func TestValidateRejectsUnknownLedger(t *testing.T) {
	cfg, err := LoadWithPath("nonexistent.env")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Inventory.Ledger = "memory"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown inventory ledger")
	}
}

func TestValidateRequiresBrokers(t *testing.T) {
	cfg, err := LoadWithPath("nonexistent.env")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Kafka.Brokers = []string{""}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty broker list")
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("production environment misclassified")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() || !cfg.IsDevelopment() {
		t.Error("development environment misclassified")
	}
}
