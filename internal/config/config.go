package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime parameter of the application.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	HTTP     HTTPConfig     `yaml:"http"`
	Viewer   ViewerConfig   `yaml:"viewer"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

type RabbitMQConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	VHost      string `yaml:"vhost"`
	UseTLS     bool   `yaml:"use_tls"`
	OrdersQ    string `yaml:"orders_queue"`
	DeadLetter string `yaml:"dead_letter_queue"`
	Prefetch   int    `yaml:"prefetch"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type ViewerConfig struct {
	ServerURL        string `yaml:"server_url"`
	ReconnectSeconds int    `yaml:"reconnect_seconds"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	cfg.applyDefaults()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Database.Port = 5432
	c.Database.SSLMode = "disable"
	c.RabbitMQ.Port = 5672
	c.RabbitMQ.VHost = "/"
	c.RabbitMQ.OrdersQ = "orders.new"
	c.RabbitMQ.DeadLetter = "orders.failed"
	c.RabbitMQ.Prefetch = 10
	c.HTTP.Port = 3002
	c.Viewer.ServerURL = "http://localhost:3002"
	c.Viewer.ReconnectSeconds = 5
}

func (c *Config) validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.RabbitMQ.Host == "" || c.RabbitMQ.User == "" {
		return fmt.Errorf("rabbitmq config incomplete")
	}
	if c.RabbitMQ.Prefetch <= 0 {
		return fmt.Errorf("rabbitmq prefetch must be positive")
	}
	return nil
}
