package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	JWT      JWTConfig
	Limits   LimitsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

type LimitsConfig struct {
	MaxConnectionsPerUser  int
	HeartbeatTimeout       time.Duration
	HealthCheckInterval    time.Duration
	SessionIdleTimeout     time.Duration
	SessionCleanupInterval time.Duration
	OfflineQueueSize       int
	MaxMessageSize         int64
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:            getEnvOrDefault("HOST", ""),
			Port:            getEnvOrDefault("PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout:    getDurationOrDefault("WRITE_TIMEOUT", "15s"),
			ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", "10s"),
		},
		JWT: JWTConfig{
			Secret:    []byte(getEnvOrFatal("JWT_SECRET")),
			Algorithm: getEnvOrDefault("JWT_ALGORITHM", "HS256"),
			TTL:       getDurationOrDefault("JWT_TTL", "24h"),
		},
		Limits: LimitsConfig{
			MaxConnectionsPerUser:  getIntOrDefault("MAX_CONNECTIONS_PER_USER", 3),
			HeartbeatTimeout:       getDurationOrDefault("HEARTBEAT_TIMEOUT", "30s"),
			HealthCheckInterval:    getDurationOrDefault("HEALTH_CHECK_INTERVAL", "10s"),
			SessionIdleTimeout:     getDurationOrDefault("SESSION_IDLE_TIMEOUT", "30m"),
			SessionCleanupInterval: getDurationOrDefault("SESSION_CLEANUP_INTERVAL", "60s"),
			OfflineQueueSize:       getIntOrDefault("OFFLINE_QUEUE_SIZE", 100),
			MaxMessageSize:         int64(getIntOrDefault("MAX_MESSAGE_SIZE", 4096)),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr: getEnvOrDefault("REDIS_ADDR", ""),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Pretty: getBoolOrDefault("LOG_PRETTY", false),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrFatal(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s environment variable is required", key)
	}
	return value
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Fatalf("Invalid boolean for %s: %v", key, err)
	}
	return boolValue
}
