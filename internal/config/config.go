package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env   string
	Port  int
	DBURL string
	Store string

	AutoMigrate bool
	DBMaxConns  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IdPSecret   string
	IdPIssuer   string
	IdPAudience string

	OTLPEndpoint    string
	OTelSampleRatio float64

	Timezone          *time.Location
	AnalyticsCacheTTL time.Duration

	CORSAllowedOrigins   []string
	RateLimitPerMinute   int
	IPRateLimitPerMinute int

	StaleShiftAfter   time.Duration
	WorkerMetricsPort int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: getEnv("DATABASE_URL", buildDBURL()),
		Store: strings.ToLower(getEnv("STORE", StorePostgres)),

		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		IdPSecret:   getEnv("IDP_JWT_SECRET", ""),
		IdPIssuer:   getEnv("IDP_ISSUER", ""),
		IdPAudience: getEnv("IDP_AUDIENCE", ""),

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		Timezone:          getEnvLocation("APP_TIMEZONE", time.UTC),
		AnalyticsCacheTTL: time.Duration(getEnvInt("ANALYTICS_CACHE_TTL_SECONDS", 30)) * time.Second,

		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		IPRateLimitPerMinute: getEnvInt("RATE_LIMIT_IP_PER_MINUTE", 600),

		StaleShiftAfter:   time.Duration(getEnvInt("STALE_SHIFT_HOURS", 16)) * time.Hour,
		WorkerMetricsPort: getEnvInt("WORKER_METRICS_PORT", 9091),
	}
}

// Validate reports settings the API cannot start without.
func (c Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.IdPSecret == "" {
		return fmt.Errorf("IDP_JWT_SECRET is required")
	}
	return nil
}

// ValidateStore checks only the storage settings; the worker and shiftctl need nothing else.
func (c Config) ValidateStore() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.Env == "prod" && c.Store == StoreMemory {
		return fmt.Errorf("STORE=memory is not allowed in prod")
	}
	return nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "shifthub")
	pass := getEnv("DB_PASSWORD", "shifthub")
	name := getEnv("DB_NAME", "shifthub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer setting, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid number setting, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean setting, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvLocation(key string, fallback *time.Location) *time.Location {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		slog.Warn("unknown timezone, using default", "key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return loc
}
