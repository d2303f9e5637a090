package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Cart     CartConfig
	Stripe   StripeConfig
	Resend   ResendConfig
	WhatsApp WhatsAppConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	URL string
}

type SessionConfig struct {
	Secret string
	MaxAge int // seconds
}

type CartConfig struct {
	TTL      time.Duration
	TaxRate  float64
	Currency string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type ResendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type WhatsAppConfig struct {
	APIURL    string
	APIToken  string
	FromPhone string
}

type WorkerConfig struct {
	ReconcileInterval time.Duration
	StaleOrderMaxAge  time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "coursemarket"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			MaxAge: getEnvAsInt("SESSION_MAX_AGE", 86400*30), // 30 days
		},
		Cart: CartConfig{
			TTL:      getEnvAsDuration("CART_TTL", 7*24*time.Hour),
			TaxRate:  getEnvAsFloat("CART_TAX_RATE", 0.08),
			Currency: getEnv("CART_CURRENCY", "usd"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:8080/checkout/success"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:8080/checkout/cancel"),
		},
		Resend: ResendConfig{
			APIKey:    getEnv("RESEND_API_KEY", ""),
			FromEmail: getEnv("RESEND_FROM_EMAIL", "noreply@coursemarket.dev"),
			FromName:  getEnv("RESEND_FROM_NAME", "Course Market"),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:    getEnv("WHATSAPP_API_URL", ""),
			APIToken:  getEnv("WHATSAPP_API_TOKEN", ""),
			FromPhone: getEnv("WHATSAPP_FROM_PHONE", ""),
		},
		Worker: WorkerConfig{
			ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", 5*time.Minute),
			StaleOrderMaxAge:  getEnvAsDuration("STALE_ORDER_MAX_AGE", time.Hour),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
