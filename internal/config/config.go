package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL           string
	SnapshotTTLMinutes int

	// Server
	Port        string
	FrontendURL string

	// Table control tokens
	JWTSecret       string
	TableTokenHours int

	// Simulation
	PhysicsConfigPath string
	TickRateHz        float64
	JournalDir        string
	MaxTables         int
	IdleTableMinutes  int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database. An empty URL runs without shot history.
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),

		// Redis. An empty URL runs without snapshots.
		RedisURL:           getEnv("REDIS_URL", ""),
		SnapshotTTLMinutes: getEnvInt("SNAPSHOT_TTL_MINUTES", 60),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Table control tokens
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		TableTokenHours: getEnvInt("TABLE_TOKEN_HOURS", 24),

		// Simulation
		PhysicsConfigPath: getEnv("PHYSICS_CONFIG", "configs/physics.yaml"),
		TickRateHz:        getEnvFloat("TICK_RATE_HZ", 60), // 0 steps only through the advance endpoint
		JournalDir:        getEnv("JOURNAL_DIR", ""),
		MaxTables:         getEnvInt("MAX_TABLES", 64),
		IdleTableMinutes:  getEnvInt("IDLE_TABLE_MINUTES", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return f
		}
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
