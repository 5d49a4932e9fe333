package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Share     ShareConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Metadata  MetadataConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret      string
	Issuer      string
	TokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// ShareConfig controls share links and the owner/public sync loop.
type ShareConfig struct {
	BaseURL         string        // prefix for /shared/<token> links
	SyncMaxAttempts int           // compare-and-swap attempts before giving up
	CacheTTL        time.Duration // public projection cache lifetime
}

type RateLimitConfig struct {
	PublicLimit  int
	PublicWindow time.Duration
}

type SchedulerConfig struct {
	ReconcileSpec string // cron spec, empty disables the job
}

type MetadataConfig struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "gifting"),
			Password: getEnv("DB_PASSWORD", "gifting"),
			DBName:   getEnv("DB_NAME", "gifting"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "your-secret-key"),
			Issuer:      getEnv("JWT_ISSUER", "gifting"),
			TokenExpiry: parseDuration(getEnv("JWT_TOKEN_EXPIRY", "24h"), 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:8081")),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Share: ShareConfig{
			BaseURL:         getEnv("SHARE_BASE_URL", "http://localhost:8081"),
			SyncMaxAttempts: getEnvInt("SHARE_SYNC_MAX_ATTEMPTS", 8),
			CacheTTL:        parseDuration(getEnv("SHARE_CACHE_TTL", "30s"), 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			PublicLimit:  getEnvInt("PUBLIC_RATE_LIMIT", 120),
			PublicWindow: parseDuration(getEnv("PUBLIC_RATE_WINDOW", "1m"), time.Minute),
		},
		Scheduler: SchedulerConfig{
			ReconcileSpec: getEnv("RECONCILE_CRON", "@every 15m"),
		},
		Metadata: MetadataConfig{
			Timeout:  parseDuration(getEnv("URL_METADATA_TIMEOUT", "8s"), 8*time.Second),
			CacheTTL: parseDuration(getEnv("URL_METADATA_CACHE_TTL", "24h"), 24*time.Hour),
		},
	}

	if config.Share.SyncMaxAttempts < 1 {
		return nil, fmt.Errorf("SHARE_SYNC_MAX_ATTEMPTS must be at least 1, got %d", config.Share.SyncMaxAttempts)
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
