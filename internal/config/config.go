// Package config provides configuration parsing and validation for the
// ESG alert service.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the alert service.
type Config struct {
	HTTPPort          string
	PostgresDSN       string
	RedisAddr         string
	KafkaBrokers      string
	ChangeEventsTopic string
	ConsumerGroupID   string
	FromAddress       string
	BaseURL           string
	DedupWindow       time.Duration
	EnableConsumer    bool
	EnableMetrics     bool
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.FromAddress == "" {
		return fmt.Errorf("from-address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base-url cannot be empty")
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("dedup-window must be positive")
	}
	if c.EnableConsumer {
		if c.KafkaBrokers == "" {
			return fmt.Errorf("kafka-brokers cannot be empty when the consumer is enabled")
		}
		if c.ChangeEventsTopic == "" {
			return fmt.Errorf("change-events-topic cannot be empty when the consumer is enabled")
		}
		if c.ConsumerGroupID == "" {
			return fmt.Errorf("consumer-group-id cannot be empty when the consumer is enabled")
		}
	}
	if c.EnableMetrics && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty when metrics are enabled")
	}
	return nil
}
