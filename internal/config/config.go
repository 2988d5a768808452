package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Config holds the environment-driven settings of the billing service.
type Config struct {
	Port         string
	Env          string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	TaxRate      decimal.Decimal
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "development"
}

// Load reads configuration from the environment. An empty DATABASE_URL
// selects the in-memory store; empty KAFKA_BROKERS disables event publishing.
func Load() (Config, error) {
	cfg := Config{
		Port:        getenv("PORT", "8080"),
		Env:         getenv("ENV", "production"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		KafkaTopic:  getenv("KAFKA_TOPIC", "bill-events"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	rate, err := decimal.NewFromString(getenv("TAX_RATE", "0.05"))
	if err != nil {
		return Config{}, fmt.Errorf("parse TAX_RATE: %w", err)
	}
	if rate.IsNegative() {
		return Config{}, fmt.Errorf("TAX_RATE must not be negative, got %s", rate)
	}
	cfg.TaxRate = rate

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
