package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port               string
	Environment        string
	RedisURL           string
	DatabaseURL        string
	AuthServiceURL     string
	CORSOrigins        string
	RateLimitPerMinute int
	MessageMaxSize     int

	FirebaseProjectID       string
	FirebaseCredentialsFile string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AuthServiceURL:     getEnv("AUTH_SERVICE_URL", "http://localhost:8081"),
		CORSOrigins:        getEnv("CORS_ORIGINS", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MessageMaxSize:     getEnvInt("MESSAGE_MAX_SIZE", 10240),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
