package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Crawler  CrawlerConfig
	Matching MatchingConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CrawlerConfig struct {
	MaxPages          int
	Delay             time.Duration
	FetchTimeout      time.Duration
	MaxCrawlTime      time.Duration
	FailureBudget     int
	RenderedAvailable bool
	UserAgent         string
}

type MatchingConfig struct {
	MinSimilarity         float64
	MaxMatchesPerProduct  int
	AllowDuplicateMatches bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "ecomcompare"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Crawler: CrawlerConfig{
			MaxPages:          getIntOrDefault("CRAWLER_MAX_PAGES", 50),
			Delay:             getDurationOrDefault("CRAWLER_DELAY", time.Second),
			FetchTimeout:      getDurationOrDefault("CRAWLER_FETCH_TIMEOUT", 15*time.Second),
			MaxCrawlTime:      getDurationOrDefault("CRAWLER_MAX_CRAWL_TIME", 5*time.Minute),
			FailureBudget:     getIntOrDefault("CRAWLER_FAILURE_BUDGET", 5),
			RenderedAvailable: getBoolOrDefault("CRAWLER_RENDERED_AVAILABLE", true),
			UserAgent:         getEnvOrDefault("CRAWLER_USER_AGENT", ""),
		},
		Matching: MatchingConfig{
			MinSimilarity:         getFloatOrDefault("MATCHING_MIN_SIMILARITY", 0.6),
			MaxMatchesPerProduct:  getIntOrDefault("MATCHING_MAX_MATCHES_PER_PRODUCT", 5),
			AllowDuplicateMatches: getBoolOrDefault("MATCHING_ALLOW_DUPLICATE_MATCHES", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("CRAWLER_MAX_PAGES must be at least 1")
	}
	if c.Crawler.FailureBudget < 1 {
		return fmt.Errorf("CRAWLER_FAILURE_BUDGET must be at least 1")
	}
	if c.Matching.MinSimilarity <= 0 || c.Matching.MinSimilarity > 1 {
		return fmt.Errorf("MATCHING_MIN_SIMILARITY must be in (0, 1]")
	}
	if c.Matching.MaxMatchesPerProduct < 1 {
		return fmt.Errorf("MATCHING_MAX_MATCHES_PER_PRODUCT must be at least 1")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
