// Package config builds runtime configuration from the environment so the
// mains stay lean. All variables are prefixed JALI_.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything the importer and forwarder read at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Import   ImportConfig
	Forward  ForwardConfig
	LogLevel string
}

// ServerConfig covers the operational HTTP endpoint (health, status,
// metrics).
type ServerConfig struct {
	Addr string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty URL disables the shared resolver cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type ImportConfig struct {
	BatchSize     int
	HierarchyFile string
	InputFile     string
}

type ForwardConfig struct {
	Interval time.Duration
}

// FromEnv builds a Config from environment variables, with development
// defaults for everything except the input paths.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr: envString("JALI_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL:             envString("JALI_DATABASE_URL", "postgres://localhost:5432/jali?sslmode=disable"),
			MaxOpenConns:    envInt("JALI_DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("JALI_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("JALI_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("JALI_REDIS_URL"),
			PoolSize:     envInt("JALI_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("JALI_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("JALI_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("JALI_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("JALI_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("JALI_RESOLVE_CACHE_TTL", 12*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("JALI_KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPrefix: envString("JALI_KAFKA_TOPIC_PREFIX", "jali.replica"),
		},
		Import: ImportConfig{
			BatchSize:     envInt("JALI_IMPORT_BATCH_SIZE", 1000),
			HierarchyFile: os.Getenv("JALI_HIERARCHY_FILE"),
			InputFile:     os.Getenv("JALI_INPUT_FILE"),
		},
		Forward: ForwardConfig{
			Interval: envDuration("JALI_FORWARD_INTERVAL", 5*time.Minute),
		},
		LogLevel: envString("JALI_LOG_LEVEL", "info"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
