package main

import (
	"fmt"
	"os"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/judge/sandbox"
	"codearena/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultQueueName    = "execute-code"
	defaultWorkDir      = "/tmp/code-execution"
	defaultFetchTimeout = 10 * time.Second
	defaultPresignTTL   = 15 * time.Minute
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// RedisConfig holds queue backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// QueueConfig tunes the execute-code queue and its worker pool.
type QueueConfig struct {
	Name        string        `yaml:"name"`
	Concurrency int           `yaml:"concurrency"`
	Attempts    int           `yaml:"attempts"`
	BackoffBase time.Duration `yaml:"backoffBase"`
	StaleAfter  time.Duration `yaml:"staleAfter"`
}

// TemplateConfig tunes code generation.
type TemplateConfig struct {
	WorkDir      string        `yaml:"workDir"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

// EventsConfig controls the final-status event stream.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// AppConfig holds the exec-service configuration.
type AppConfig struct {
	Server ServerConfig  `yaml:"server"`
	Logger logger.Config `yaml:"logger"`

	Database db.PostgresConfig   `yaml:"database"`
	Redis    RedisConfig         `yaml:"redis"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
	Kafka    mq.KafkaConfig      `yaml:"kafka"`
	Events   EventsConfig        `yaml:"events"`

	Queue    QueueConfig       `yaml:"queue"`
	Template TemplateConfig    `yaml:"template"`
	Sandbox  sandbox.APIConfig `yaml:"sandbox"`
	CLI      sandbox.CLIConfig `yaml:"cli"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.CLI.Path == "" && cfg.Sandbox.URL == "" {
		return nil, fmt.Errorf("at least one of sandbox url or cli path is required")
	}
	if cfg.Events.Enabled && cfg.Events.Topic == "" {
		return nil, fmt.Errorf("events topic is required when events are enabled")
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Queue.Name == "" {
		cfg.Queue.Name = defaultQueueName
	}
	if cfg.Template.WorkDir == "" {
		cfg.Template.WorkDir = defaultWorkDir
	}
	if cfg.Template.FetchTimeout == 0 {
		cfg.Template.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MinIO.PresignTTL == 0 {
		cfg.MinIO.PresignTTL = defaultPresignTTL
	}

	return &cfg, nil
}
