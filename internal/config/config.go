// Package config содержит логику чтения конфигурации сервиса игровой комнаты.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/playhouse/internal/billing"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	PrintAgentAddress string `env:"PRINT_AGENT_ADDRESS"`

	BaseCost             int64  `env:"BASE_COST" envDefault:"50000"`
	RoundTo              int64  `env:"ROUND_TO" envDefault:"0"`
	RoundStrategy        string `env:"ROUND_STRATEGY" envDefault:"ceil"`
	GraceMinutes         int    `env:"GRACE_MINUTES" envDefault:"10"`
	DefaultTariffMinutes int    `env:"DEFAULT_TARIFF_MINUTES" envDefault:"60"`
	Currency             string `env:"CURRENCY" envDefault:"UZS"`
	Timezone             string `env:"TIMEZONE" envDefault:"Local"`

	JWTSecret    string        `env:"JWT_SECRET"`
	FrontendURLs []string      `env:"FRONTEND_URL" envSeparator:","`
	RedisURL     string        `env:"REDIS_URL"`
	ScanCooldown time.Duration `env:"SCAN_COOLDOWN" envDefault:"3s"`

	ReceiptDir     string `env:"RECEIPT_DIR" envDefault:"receipts"`
	ReceiptTitle   string `env:"RECEIPT_TITLE" envDefault:"PLAYHOUSE"`
	PrintCommand   string `env:"PRINT_COMMAND"`
	PrintQueueSize int    `env:"PRINT_QUEUE_SIZE" envDefault:"64"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	strategy billing.Strategy
	location *time.Location
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPrintAgentAddress := cfg.PrintAgentAddress

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PrintAgentAddress, "p", "", "print agent address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPrintAgentAddress != "" {
		cfg.PrintAgentAddress = envPrintAgentAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	strategy, err := billing.ParseStrategy(c.RoundStrategy)
	if err != nil {
		return fmt.Errorf("ROUND_STRATEGY: %w", err)
	}
	c.strategy = strategy

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.location = loc

	switch {
	case c.BaseCost <= 0:
		return fmt.Errorf("BASE_COST must be positive, got %d", c.BaseCost)
	case c.RoundTo < 0:
		return fmt.Errorf("ROUND_TO must not be negative, got %d", c.RoundTo)
	case c.GraceMinutes < 0:
		return fmt.Errorf("GRACE_MINUTES must not be negative, got %d", c.GraceMinutes)
	case c.DefaultTariffMinutes <= 0:
		return fmt.Errorf("DEFAULT_TARIFF_MINUTES must be positive, got %d", c.DefaultTariffMinutes)
	case c.PrintQueueSize <= 0:
		return fmt.Errorf("PRINT_QUEUE_SIZE must be positive, got %d", c.PrintQueueSize)
	}

	return nil
}

// Billing возвращает параметры движка расчёта.
// GRACE_MINUTES=0 отключает льготный период.
func (c *Config) Billing() billing.Config {
	grace := c.GraceMinutes
	if grace == 0 {
		grace = billing.GraceDisabled
	}
	return billing.Config{
		BaseCost:        c.BaseCost,
		RoundTo:         c.RoundTo,
		Strategy:        c.strategy,
		GraceMinutes:    grace,
		DefaultDuration: time.Duration(c.DefaultTariffMinutes) * time.Minute,
		Currency:        c.Currency,
	}
}

// Location возвращает часовой пояс, в котором считаются границы дня.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}
