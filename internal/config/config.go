package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"glxy/internal/logger"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppPort     string
	Version     string
	LogLevel    string
	LogJSON     bool
	DevMode     bool
	StoreDriver string
	DatabaseURL string
	AutoMigrate bool

	// Sessions and identity
	JWTSecret      string
	SessionTTL     time.Duration
	IdentitySecret string
	IdentityIssuer string
	AdminUserIDs   []string
	AllowedOrigin  string

	// Redis (rate limits, profile fan-out, session revocation)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Ledger
	InitialStardust   int64
	BillingPolicy     string
	StoreRetries      int
	StoreRetryBackoff time.Duration

	// Payments
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	StardustPerUSD      int64
	MinPurchaseUSD      int64
	MaxPurchaseUSD      int64

	// AI adapters
	OpenAIAPIKey  string
	OpenAIBaseURL string
	VisionModel   string
	TextModel     string
	AITimeout     time.Duration

	// Object store
	MediaDir       string
	MediaBaseURL   string
	MaxUploadBytes int64

	// Reconciliation
	ReconcileSchedule string
	ReconcileRepair   bool

	// Rate limits
	APIRateLimit    int
	APIRateWindow   time.Duration
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	SpendRateLimit  int
	SpendRateWindow time.Duration
}

// Load reads the configuration from the environment (and .env when present)
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:     GetString("APP_PORT", "8080"),
		Version:     GetString("APP_VERSION", "dev"),
		LogLevel:    GetString("LOG_LEVEL", "info"),
		LogJSON:     GetBool("LOG_JSON", false),
		DevMode:     GetBool("DEV_MODE", false),
		StoreDriver: GetString("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: GetBool("AUTO_MIGRATE", true),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		SessionTTL:     GetDuration("SESSION_TTL", 24*time.Hour),
		IdentitySecret: os.Getenv("IDENTITY_SECRET"),
		IdentityIssuer: os.Getenv("IDENTITY_ISSUER"),
		AdminUserIDs:   GetList("ADMIN_USER_IDS"),
		AllowedOrigin:  os.Getenv("ALLOWED_ORIGIN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       GetInt("REDIS_DB", 0),

		InitialStardust:   int64(GetInt("INITIAL_STARDUST", 1000)),
		BillingPolicy:     GetString("BILLING_POLICY", "refund_on_failure"),
		StoreRetries:      GetInt("STORE_RETRIES", 3),
		StoreRetryBackoff: GetDuration("STORE_RETRY_BACKOFF", time.Second),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  GetString("CHECKOUT_SUCCESS_URL", "http://localhost:3000/dashboard?success=true"),
		CheckoutCancelURL:   GetString("CHECKOUT_CANCEL_URL", "http://localhost:3000/dashboard?canceled=true"),
		StardustPerUSD:      int64(GetInt("STARDUST_PER_USD", 20)),
		MinPurchaseUSD:      int64(GetInt("MIN_PURCHASE_USD", 1)),
		MaxPurchaseUSD:      int64(GetInt("MAX_PURCHASE_USD", 500)),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		VisionModel:   GetString("OPENAI_VISION_MODEL", "gpt-4o"),
		TextModel:     GetString("OPENAI_TEXT_MODEL", "gpt-4o-mini"),
		AITimeout:     GetDuration("AI_TIMEOUT", 60*time.Second),

		MediaDir:       GetString("MEDIA_DIR", "./media"),
		MediaBaseURL:   GetString("MEDIA_BASE_URL", "http://localhost:8080/media"),
		MaxUploadBytes: int64(GetInt("MAX_UPLOAD_BYTES", 10<<20)),

		ReconcileSchedule: GetString("RECONCILE_SCHEDULE", "@every 1h"),
		ReconcileRepair:   GetBool("RECONCILE_REPAIR", false),

		APIRateLimit:    GetInt("API_RATE_LIMIT", 120),
		APIRateWindow:   time.Duration(GetInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		AuthRateLimit:   GetInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:  time.Duration(GetInt("AUTH_RATE_WINDOW_SECONDS", 60)) * time.Second,
		SpendRateLimit:  GetInt("SPEND_RATE_LIMIT", 30),
		SpendRateWindow: time.Duration(GetInt("SPEND_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		logger.Fatal("unknown STORE_DRIVER", "driver", cfg.StoreDriver)
	}
	if cfg.StoreDriver == StoreDriverPostgres && cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}
	if cfg.IdentitySecret == "" && !cfg.DevMode {
		logger.Fatal("IDENTITY_SECRET is not set")
	}

	return cfg
}

// IsAdmin reports whether userID is listed in ADMIN_USER_IDS
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GetString returns the env value or def when unset
func GetString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetInt parses an int env value; invalid or negative values fall back to def
func GetInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("invalid integer in env, using default", "key", key, "value", v)
		return def
	}
	return n
}

func GetBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetDuration accepts Go duration strings ("90s", "1h")
func GetDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("invalid duration in env, using default", "key", key, "value", v)
		return def
	}
	return d
}

// GetList splits a comma separated env value
func GetList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
