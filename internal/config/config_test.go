package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  user: app
  password: secret
  database: orders
rabbitmq:
  host: mq.internal
  user: app
  password: secret
  prefetch: 25
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5432 {
		t.Fatalf("database: %+v", cfg.Database)
	}
	if cfg.RabbitMQ.Prefetch != 25 {
		t.Fatalf("prefetch: %d", cfg.RabbitMQ.Prefetch)
	}
	// defaults survive when omitted
	if cfg.RabbitMQ.OrdersQ != "orders.new" || cfg.RabbitMQ.DeadLetter != "orders.failed" {
		t.Fatalf("queue defaults: %+v", cfg.RabbitMQ)
	}
	if cfg.Viewer.ReconnectSeconds != 5 {
		t.Fatalf("viewer defaults: %+v", cfg.Viewer)
	}
}

func TestLoadIncomplete(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
