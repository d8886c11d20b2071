package core

import (
	"fmt"
	"strings"
	"time"
)

type HTTPConfig struct {
	Address      string `koanf:"address" mapstructure:"address"`
	MaxBodyBytes int    `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type QueueConfig struct {
	Driver             string `koanf:"driver" mapstructure:"driver"`
	RedisAddr          string `koanf:"redis_addr" mapstructure:"redis_addr"`
	Name               string `koanf:"name" mapstructure:"name"`
	Workers            int    `koanf:"workers" mapstructure:"workers"`
	MaxAttempts        int    `koanf:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSeconds     int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	RetryInitialMillis int    `koanf:"retry_initial_ms" mapstructure:"retry_initial_ms"`
	RetryMaxMillis     int    `koanf:"retry_max_ms" mapstructure:"retry_max_ms"`
}

func (c QueueConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c QueueConfig) RetryInitial() time.Duration {
	return time.Duration(c.RetryInitialMillis) * time.Millisecond
}

func (c QueueConfig) RetryMax() time.Duration {
	return time.Duration(c.RetryMaxMillis) * time.Millisecond
}

type IngestConfig struct {
	StatusPolicy        string `koanf:"status_policy" mapstructure:"status_policy"`
	DefaultOutboundType string `koanf:"default_outbound_type" mapstructure:"default_outbound_type"`
}

type CacheConfig struct {
	Enabled    bool `koanf:"enabled" mapstructure:"enabled"`
	TTLSeconds int  `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type PublishConfig struct {
	Driver  string   `koanf:"driver" mapstructure:"driver"`
	Brokers []string `koanf:"brokers" mapstructure:"brokers"`
	Topic   string   `koanf:"topic" mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Queue       QueueConfig    `koanf:"queue" mapstructure:"queue"`
	Ingest      IngestConfig   `koanf:"ingest" mapstructure:"ingest"`
	Cache       CacheConfig    `koanf:"cache" mapstructure:"cache"`
	Publish     PublishConfig  `koanf:"publish" mapstructure:"publish"`
	Log         LogConfig      `koanf:"log" mapstructure:"log"`
}

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite3"
	DatabaseDriverMemory   = "memory"

	QueueDriverMemory   = "memory"
	QueueDriverRedis    = "redis"
	QueueDriverDatabase = "database"

	PublishDriverNone  = "none"
	PublishDriverKafka = "kafka"

	DefaultOutboundType = "session"

	// DefaultMaxBodyBytes bounds the size of one webhook payload.
	DefaultMaxBodyBytes = 1 << 20
)

func DefaultConfig() Config {
	return Config{
		ServiceName: "inbox",
		HTTP:        HTTPConfig{Address: ":8080", MaxBodyBytes: DefaultMaxBodyBytes},
		Database: DatabaseConfig{
			Driver: DatabaseDriverSQLite,
			DSN:    "file:inbox.db?cache=shared&_foreign_keys=on",
		},
		Queue: QueueConfig{
			Driver:             QueueDriverMemory,
			RedisAddr:          "localhost:6379",
			Name:               "inbox:webhooks",
			Workers:            4,
			MaxAttempts:        3,
			TimeoutSeconds:     60,
			RetryInitialMillis: 1000,
			RetryMaxMillis:     30000,
		},
		Ingest: IngestConfig{
			StatusPolicy:        string(StatusPolicyMonotonic),
			DefaultOutboundType: DefaultOutboundType,
		},
		Cache: CacheConfig{TTLSeconds: 60},
		Publish: PublishConfig{
			Driver: PublishDriverNone,
			Topic:  "inbox.messages",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch c.Database.Driver {
	case DatabaseDriverPostgres, DatabaseDriverSQLite:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("core: database.dsn is required for driver %q", c.Database.Driver)
		}
	case DatabaseDriverMemory:
	default:
		return fmt.Errorf("core: unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Queue.Driver {
	case QueueDriverMemory:
	case QueueDriverRedis:
		if strings.TrimSpace(c.Queue.RedisAddr) == "" {
			return fmt.Errorf("core: queue.redis_addr is required for the redis driver")
		}
	case QueueDriverDatabase:
		if c.Database.Driver == DatabaseDriverMemory {
			return fmt.Errorf("core: queue.driver database needs a sql database.driver")
		}
	default:
		return fmt.Errorf("core: unsupported queue.driver %q", c.Queue.Driver)
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("core: http.max_body_bytes must be >= 0")
	}
	if c.Queue.Workers < 0 {
		return fmt.Errorf("core: queue.workers must be >= 0")
	}
	if c.Queue.MaxAttempts < 0 {
		return fmt.Errorf("core: queue.max_attempts must be >= 0")
	}
	if c.Queue.TimeoutSeconds < 0 {
		return fmt.Errorf("core: queue.timeout_seconds must be >= 0")
	}
	if _, err := ParseStatusPolicy(c.Ingest.StatusPolicy); err != nil {
		return err
	}
	switch c.Publish.Driver {
	case "", PublishDriverNone:
	case PublishDriverKafka:
		if len(c.Publish.Brokers) == 0 {
			return fmt.Errorf("core: publish.brokers is required for the kafka driver")
		}
		if strings.TrimSpace(c.Publish.Topic) == "" {
			return fmt.Errorf("core: publish.topic is required for the kafka driver")
		}
	default:
		return fmt.Errorf("core: unsupported publish.driver %q", c.Publish.Driver)
	}
	return nil
}
