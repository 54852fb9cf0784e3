package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-orders/internal/config"
	"restaurant-orders/internal/connections/database"
	"restaurant-orders/internal/connections/rabbitmq"
	"restaurant-orders/internal/httpapi"
	"restaurant-orders/internal/hub"
	"restaurant-orders/internal/ingest"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/repository"
	"restaurant-orders/internal/viewer"
)

func main() {
	mode := flag.String("mode", "", "sync-service | viewer")
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	port := flag.Int("port", 0, "sync-service: override HTTP port")
	flag.Parse()

	lg := logger.New("bootstrap")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": *cfgPath})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "sync-service":
		if err := runSyncService(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "viewer":
		if err := runViewer(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: sync-service | viewer")
		os.Exit(2)
	}
}

func runSyncService(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("sync-service")

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})

	mq := rabbitmq.New(rabbitmq.Config{
		Host:     cfg.RabbitMQ.Host,
		Port:     cfg.RabbitMQ.Port,
		User:     cfg.RabbitMQ.User,
		Password: cfg.RabbitMQ.Password,
		VHost:    cfg.RabbitMQ.VHost,
		UseTLS:   cfg.RabbitMQ.UseTLS,
		Prefetch: cfg.RabbitMQ.Prefetch,
	})
	if err := mq.Connect(ctx); err != nil {
		return err
	}
	defer mq.Close()
	lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host})

	repo := repository.NewOrdersPG(pool)
	h := hub.New(logger.New("hub"))

	worker := ingest.NewWorker(repo, mq, h, logger.New("ingest"), ingest.Config{
		Queue:      cfg.RabbitMQ.OrdersQ,
		DeadLetter: cfg.RabbitMQ.DeadLetter,
		Prefetch:   cfg.RabbitMQ.Prefetch,
	})

	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(ctx) }()

	api := httpapi.NewServer(repo, mq, h, logger.New("http"), cfg.RabbitMQ.OrdersQ)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	lg.Info("service_started", map[string]any{"addr": addr})

	if err := api.Run(ctx, addr); err != nil {
		return err
	}
	// let the worker finish in-flight deliveries
	select {
	case err := <-workerDone:
		return err
	case <-time.After(30 * time.Second):
		return fmt.Errorf("ingestion worker did not drain in time")
	}
}

func runViewer(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("viewer")
	client := viewer.NewClient(viewer.ClientConfig{
		ServerURL:      cfg.Viewer.ServerURL,
		ReconnectDelay: time.Duration(cfg.Viewer.ReconnectSeconds) * time.Second,
	}, lg)
	return client.Run(ctx)
}
