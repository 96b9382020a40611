package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Dialogue store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	Port                string
	Env                 string
	LogLevel            string
	UseMemoryQueue      bool
	WorkerCount         int
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	DialogueStore       string
	Timezone            string
	TuningConfigPath    string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ChatQueueURL        string
	LockTTL             time.Duration
	LockWait            time.Duration
	RateLimitRPS        float64
	RateLimitBurst      int
	AuditEnabled        bool
	CORSAllowedOrigins  []string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue:      getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		DialogueStore:       strings.ToLower(strings.TrimSpace(getEnv("DIALOGUE_STORE", ""))),
		Timezone:            getEnv("TIMEZONE", "Asia/Singapore"),
		TuningConfigPath:    getEnv("TUNING_CONFIG_PATH", ""),
		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ChatQueueURL:        getEnv("CHAT_QUEUE_URL", ""),
		LockTTL:             getEnvAsDuration("LOCK_TTL", 10*time.Second),
		LockWait:            getEnvAsDuration("LOCK_WAIT", 5*time.Second),
		RateLimitRPS:        getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 10),
		AuditEnabled:        getEnvAsBool("AUDIT_ENABLED", true),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
	if cfg.DialogueStore == "" {
		cfg.DialogueStore = defaultDialogueStore(cfg)
	}
	return cfg
}

// defaultDialogueStore prefers Redis, then Postgres, then memory.
func defaultDialogueStore(cfg *Config) string {
	switch {
	case cfg.RedisAddr != "":
		return StoreRedis
	case cfg.DatabaseURL != "":
		return StorePostgres
	default:
		return StoreMemory
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
