package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	IdentityFirebase = "firebase"
	IdentityLocal    = "local"

	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

type Config struct {
	Env          string
	Port         int
	ServiceName  string
	OTLPEndpoint string

	IdentityBackend string
	ExpenseStore    string

	FirebaseProjectID    string
	GoogleCredentials    string
	FirebaseWebAPIKey    string
	FirebaseCheckRevoked bool
	FirestoreDatabase    string
	FirestoreCollection  string

	DBURL string

	JWTSecret           string
	JWTAccessTTLMinutes int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthRateLimit  int
	AuthRateWindow time.Duration

	AMQPURL      string
	AMQPExchange string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	SeedUserEmail    string
	SeedUserPassword string
}

// Load reads .env when present, then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:          getEnv("APP_ENV", "dev"),
		Port:         getEnvInt("PORT", 3000),
		ServiceName:  getEnv("SERVICE_NAME", "expensetracker-api"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		IdentityBackend: strings.ToLower(getEnv("IDENTITY_BACKEND", IdentityLocal)),
		ExpenseStore:    strings.ToLower(getEnv("EXPENSE_STORE", StoreMemory)),

		FirebaseProjectID:    getEnv("FIREBASE_PROJECT_ID", ""),
		GoogleCredentials:    getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseWebAPIKey:    getEnv("FIREBASE_WEB_API_KEY", ""),
		FirebaseCheckRevoked: getEnvBool("FIREBASE_CHECK_REVOKED", false),
		FirestoreDatabase:    getEnv("FIRESTORE_DATABASE", "(default)"),
		FirestoreCollection:  getEnv("FIRESTORE_COLLECTION", "expenses"),

		DBURL: buildDBURL(),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow: getEnvDuration("AUTH_RATE_WINDOW", time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		SeedUserEmail:    getEnv("SEED_USER_EMAIL", ""),
		SeedUserPassword: getEnv("SEED_USER_PASSWORD", ""),
	}
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	switch c.IdentityBackend {
	case IdentityFirebase:
		if c.FirebaseProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when IDENTITY_BACKEND=firebase")
		}
	case IdentityLocal:
		if c.JWTSecret == "" {
			problems = append(problems, "JWT_SECRET is required when IDENTITY_BACKEND=local")
		}
		if c.Env == "prod" {
			problems = append(problems, "IDENTITY_BACKEND=local is not allowed in prod")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid identity backend %q: must be firebase or local", c.IdentityBackend))
	}

	switch c.ExpenseStore {
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when EXPENSE_STORE=firestore")
		}
	case StorePostgres, StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid expense store %q: must be firestore, postgres or memory", c.ExpenseStore))
	}

	if c.AMQPURL != "" {
		u, err := url.Parse(c.AMQPURL)

		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			problems = append(problems, "AMQP_URL must be an amqp:// or amqps:// URL")
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
	}

	if c.AuthRateLimit < 1 {
		problems = append(problems, fmt.Sprintf("invalid AUTH_RATE_LIMIT %d: must be at least 1", c.AuthRateLimit))
	}

	if c.AuthRateWindow <= 0 {
		problems = append(problems, "AUTH_RATE_WINDOW must be positive")
	}

	if c.MaxBodyBytes <= 0 {
		problems = append(problems, "MAX_BODY_BYTES must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration invalid: %s", strings.Join(problems, "; "))
	}

	return nil
}

func (c Config) JWTAccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "expenses")
	pass := getEnv("DB_PASSWORD", "expenses")
	name := getEnv("DB_NAME", "expenses")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a call made on behalf of parent.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
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
			slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
			return fallback
		}

		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
			return fallback
		}

		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)

	if v == "" {
		return fallback
	}

	var out []string

	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
